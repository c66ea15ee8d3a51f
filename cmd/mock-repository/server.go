package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/predicate"
	"github.com/gorilla/mux"
)

const masterRef = "mock-master-ref"

type fixtureServer struct {
	docs []domain.RawDocument
}

func newFixtureServer(docs []domain.RawDocument) *fixtureServer {
	sorted := append([]domain.RawDocument(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := sorted[i].PublishedAt()
		b, _ := sorted[j].PublishedAt()
		return a.After(b)
	})
	return &fixtureServer{docs: sorted}
}

func (s *fixtureServer) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v2", s.api).Methods("GET")
	r.HandleFunc("/api/v2/documents/search", s.search).Methods("GET")
	return r
}

func (s *fixtureServer) api(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"refs": []map[string]any{
			{"id": "master", "ref": masterRef, "isMasterRef": true},
		},
	})
}

func (s *fixtureServer) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("ref") != masterRef {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown ref"})
		return
	}
	filter, err := predicate.ParseFilter(predicate.Unwrap(q.Get("q")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	page := atoiOr(q.Get("page"), 1)
	pageSize := atoiOr(q.Get("pageSize"), 20)
	if page < 1 || pageSize < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pagination"})
		return
	}

	matched := s.match(filter)
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	results := matched[start:end]

	writeJSON(w, http.StatusOK, map[string]any{
		"page":               page,
		"results_per_page":   pageSize,
		"results_size":       len(results),
		"total_results_size": len(matched),
		"total_pages":        (len(matched) + pageSize - 1) / pageSize,
		"results":            results,
	})
}

// match applies the type filter and a case-insensitive substring full-text match.
func (s *fixtureServer) match(f predicate.Filter) []domain.RawDocument {
	term := strings.ToLower(f.Fulltext)
	out := []domain.RawDocument{}
	for _, d := range s.docs {
		if f.DocumentType != "" && d.Type != f.DocumentType {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(searchText(d)), term) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func searchText(d domain.RawDocument) string {
	var parts []string
	for _, rt := range []domain.RichText{d.Data.Title, d.Data.Content, d.Data.Tags} {
		if text, err := rt.AsText(); err == nil {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func atoiOr(s string, fallback int) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// loadFixtures reads documents from path, or generates a sample set when path is empty.
func loadFixtures(path string) ([]domain.RawDocument, error) {
	if path == "" {
		return sampleDocuments(10, time.Now()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close fixtures file", "error", err)
		}
	}()

	var docs []domain.RawDocument
	if err := json.NewDecoder(f).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return docs, nil
}

var sampleTopics = []struct {
	title string
	tag   string
	body  string
}{
	{"Primeiros passos com Go", "golang", "Go é uma linguagem compilada com concorrência nativa através de goroutines e canais."},
	{"Testes de tabela", "golang", "Testes orientados a tabela deixam os casos explícitos e fáceis de estender."},
	{"Introdução ao Rust", "rust", "Ownership e borrowing garantem segurança de memória sem coletor de lixo."},
	{"Kafka na prática", "mensageria", "Tópicos, partições e grupos de consumidores formam a base do Kafka."},
	{"Índices no MongoDB", "banco de dados", "Índices compostos e de texto aceleram consultas e buscas textuais."},
}

func sampleDocuments(n int, now time.Time) []domain.RawDocument {
	docs := make([]domain.RawDocument, n)
	for i := range docs {
		topic := sampleTopics[i%len(sampleTopics)]
		body := strings.Repeat(topic.body+" ", 4+i)
		docs[i] = domain.RawDocument{
			ID:                  fmt.Sprintf("mock-%02d", i+1),
			UID:                 fmt.Sprintf("post-%02d", i+1),
			Type:                "template-post",
			LastPublicationDate: now.Add(-time.Duration(i) * 24 * time.Hour).UTC().Format("2006-01-02T15:04:05-0700"),
			Data: domain.DocumentData{
				Title: domain.RichText{{Type: "heading1", Text: fmt.Sprintf("%s #%d", topic.title, i+1)}},
				Content: domain.RichText{
					{Type: "heading2", Text: topic.title},
					{Type: domain.BlockParagraph, Text: strings.TrimSpace(body)},
					{Type: domain.BlockImage, URL: fmt.Sprintf("https://images.example/post-%02d-inline.png", i+1)},
				},
				Image: &domain.Image{URL: fmt.Sprintf("https://images.example/post-%02d.png", i+1)},
				Tags:  domain.RichText{{Type: domain.BlockParagraph, Text: topic.tag}},
			},
		}
	}
	return docs
}
