package transformer

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/PostFeed/pkg/logging"
)

const (
	// shortExcerpt and longExcerpt are the preview lengths, in characters.
	// Every fourth post in a batch gets the long preview.
	shortExcerpt = 200
	longExcerpt  = 600
	longEvery    = 4
	ellipsis     = "..."

	wordsPerMinute = 265
	// imagesPerPost is fixed: the read-time estimate assumes a single illustration.
	imagesPerPost = 1

	dateLayout = "02/01/2006"
)

// PostTransformer turns repository documents into posts for the listing.
type PostTransformer struct {
	location *time.Location
	sampler  *logging.Sampler
}

// NewPostTransformer returns a transformer that renders dates in loc.
// A nil loc means UTC.
func NewPostTransformer(loc *time.Location, sampler *logging.Sampler) *PostTransformer {
	if loc == nil {
		loc = time.UTC
	}
	if sampler == nil {
		sampler = logging.NewSampler(10)
	}
	return &PostTransformer{location: loc, sampler: sampler}
}

// TransformBatch converts docs in order. Documents that cannot be displayed
// are dropped; positions still count them so the excerpt rhythm of the
// remaining posts matches the batch.
func (t *PostTransformer) TransformBatch(docs []domain.RawDocument) []domain.Post {
	posts := make([]domain.Post, 0, len(docs))
	for i, doc := range docs {
		key := "transform:" + doc.UID
		post, err := t.Transform(doc, i+1)
		if err != nil {
			metrics.DocumentsTransformed.WithLabelValues("skipped").Inc()
			t.sampler.Warn(key, "Skipping document", "uid", doc.UID, "position", i+1, "error", err)
			continue
		}
		if skipped := t.sampler.Count(key); skipped > 0 {
			slog.Info("Document is displayable again", "uid", doc.UID, "skipped", skipped)
			t.sampler.Forget(key)
		}
		metrics.DocumentsTransformed.WithLabelValues("ok").Inc()
		posts = append(posts, post)
	}
	return posts
}

// Transform converts a single document found at position (1-based) in its batch.
func (t *PostTransformer) Transform(doc domain.RawDocument, position int) (domain.Post, error) {
	title, err := doc.Data.Title.AsText()
	if err != nil {
		return domain.Post{}, fmt.Errorf("document %q title: %w", doc.UID, err)
	}
	body, err := doc.Data.Content.AsText()
	if err != nil {
		return domain.Post{}, fmt.Errorf("document %q content: %w", doc.UID, err)
	}

	var tag string
	if doc.Data.Tags != nil {
		tag, _ = doc.Data.Tags.AsText()
	}

	var source string
	if p, ok := doc.Data.Content.First(domain.BlockParagraph); ok {
		source = p.Text
	}

	return domain.Post{
		Slug:       doc.UID,
		Title:      title,
		Excerpt:    Excerpt(source, position),
		Tag:        tag,
		Image:      doc.ImageURL(),
		TimeOfRead: TimeOfRead(body),
		UpdatedAt:  t.formatDate(&doc),
	}, nil
}

func (t *PostTransformer) formatDate(doc *domain.RawDocument) string {
	ts, ok := doc.PublishedAt()
	if !ok {
		slog.Debug("Unparseable publication date", "uid", doc.UID, "value", doc.LastPublicationDate)
		return ""
	}
	return ts.In(t.location).Format(dateLayout)
}

// Excerpt returns the preview for a post at position in its batch.
// Sources of shortExcerpt characters or fewer get no preview at all.
func Excerpt(source string, position int) string {
	runes := []rune(source)
	if len(runes) <= shortExcerpt {
		return ""
	}
	n := shortExcerpt
	if position%longEvery == 0 {
		n = longExcerpt
	}
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n]) + ellipsis
}

// TimeOfRead estimates the reading time in whole minutes of a plain-text body.
func TimeOfRead(text string) int {
	words := len(strings.Fields(text))
	seconds := float64(words)/wordsPerMinute*60 + imageSeconds(imagesPerPost)
	return int(math.Round(seconds / 60))
}

// imageSeconds is the time spent looking at n images: 12s for the first,
// one second less for each of the next nine, then 3s each.
func imageSeconds(n int) float64 {
	var total float64
	for i := 0; i < n; i++ {
		if i <= 9 {
			total += float64(12 - i)
		} else {
			total += 3
		}
	}
	return total
}
