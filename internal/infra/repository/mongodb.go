package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/metrics"
	"github.com/PostFeed/internal/infra/predicate"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const backendName = "mongo"

// record is the stored form of a document. The extra fields are derived on
// write so the store can sort, run $text queries and detect changes.
type record struct {
	domain.RawDocument `bson:",inline"`
	PublishedAt        time.Time `bson:"published_at"`
	SearchText         string    `bson:"search_text"`
	ContentHash        string    `bson:"content_hash"`
}

// MongoRepository mirrors repository documents and answers the same queries
// as the remote repository.
type MongoRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

var _ domain.ContentStore = (*MongoRepository)(nil)

func NewMongoRepository(client *mongo.Client, dbName, collectionName string) (*MongoRepository, error) {
	db := client.Database(dbName)
	repo := &MongoRepository{
		db:         db,
		collection: db.Collection(collectionName),
	}

	if err := repo.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "published_at", Value: -1},
			},
			Options: options.Index().SetName("type_published_at_idx"),
		},
		{
			Keys: bson.D{
				{Key: "search_text", Value: "text"},
			},
			Options: options.Index().SetName("search_text_idx").SetDefaultLanguage("portuguese"),
		},
	}

	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)
	_, err := r.collection.Indexes().CreateMany(ctx, models, opts)
	return err
}

func toRecord(doc domain.RawDocument) record {
	published, _ := doc.PublishedAt()

	var parts []string
	for _, rt := range []domain.RichText{doc.Data.Title, doc.Data.Content, doc.Data.Tags} {
		if text, err := rt.AsText(); err == nil && text != "" {
			parts = append(parts, text)
		}
	}

	return record{
		RawDocument: doc,
		PublishedAt: published,
		SearchText:  strings.Join(parts, " "),
		ContentHash: doc.ContentHash(),
	}
}

func (r *MongoRepository) Upsert(ctx context.Context, doc *domain.RawDocument) error {
	filter := bson.M{"_id": doc.UID}
	update := bson.M{"$set": toRecord(*doc)}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (r *MongoRepository) BulkUpsert(ctx context.Context, docs []domain.RawDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var models []mongo.WriteModel
	for _, doc := range docs {
		filter := bson.M{"_id": doc.UID}
		update := bson.M{"$set": toRecord(doc)}
		model := mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true)
		models = append(models, model)
	}

	opts := options.BulkWrite().SetOrdered(false)
	_, err := r.collection.BulkWrite(ctx, models, opts)
	if err != nil {
		return fmt.Errorf("failed to bulk upsert documents: %w", err)
	}
	return nil
}

func (r *MongoRepository) GetContentHashes(ctx context.Context, uids []string) (map[string]string, error) {
	filter := bson.M{"_id": bson.M{"$in": uids}}
	opts := options.Find()
	// Only fetch _id and content_hash
	opts.SetProjection(bson.M{"_id": 1, "content_hash": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			slog.Warn("Failed to close cursor", "error", err)
		}
	}()

	results := make(map[string]string)
	for cursor.Next(ctx) {
		var doc struct {
			UID         string `bson:"_id"`
			ContentHash string `bson:"content_hash"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue // Skip malformed
		}
		results[doc.UID] = doc.ContentHash
	}
	return results, cursor.Err()
}

// Query answers a repository query from the local mirror.
func (r *MongoRepository) Query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	start := time.Now()
	resp, err := r.query(ctx, req)
	metrics.RepositoryQueryDuration.WithLabelValues(backendName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RepositoryQueries.WithLabelValues(backendName, "error").Inc()
		return domain.QueryResponse{}, fmt.Errorf("%w: %w", domain.ErrRepositoryQuery, err)
	}
	metrics.RepositoryQueries.WithLabelValues(backendName, "success").Inc()
	return resp, nil
}

func (r *MongoRepository) query(ctx context.Context, req domain.QueryRequest) (domain.QueryResponse, error) {
	filter, err := buildFilter(req.Predicate)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	if req.Page < 1 || req.PageSize < 1 {
		return domain.QueryResponse{}, fmt.Errorf("invalid page %d / page size %d", req.Page, req.PageSize)
	}

	opts := options.Find().
		SetSort(buildSort(req.Orderings)).
		SetSkip(int64((req.Page - 1) * req.PageSize)).
		SetLimit(int64(req.PageSize))
	if projection := buildProjection(req.FetchFields); projection != nil {
		opts.SetProjection(projection)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			slog.Warn("Failed to close cursor", "error", err)
		}
	}()

	docs := make([]domain.RawDocument, 0, req.PageSize)
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			slog.Warn("Skipping malformed record", "error", err)
			continue
		}
		docs = append(docs, rec.RawDocument)
	}
	if err := cursor.Err(); err != nil {
		return domain.QueryResponse{}, err
	}

	return domain.QueryResponse{Results: docs, ResultsCount: len(docs)}, nil
}

func buildFilter(p string) (bson.M, error) {
	f, err := predicate.ParseFilter(p)
	if err != nil {
		return nil, err
	}
	filter := bson.M{}
	if f.DocumentType != "" {
		filter["type"] = f.DocumentType
	}
	if f.Fulltext != "" {
		filter["$text"] = bson.M{"$search": f.Fulltext}
	}
	return filter, nil
}

// buildSort maps "[document.last_publication_date desc]" style orderings.
// Unknown fields fall back to newest first.
func buildSort(orderings string) bson.D {
	sort := bson.D{}
	for _, o := range strings.Split(strings.Trim(orderings, "[]"), ",") {
		fields := strings.Fields(o)
		if len(fields) == 0 {
			continue
		}
		dir := 1
		if len(fields) > 1 && fields[1] == "desc" {
			dir = -1
		}
		switch fields[0] {
		case "document.last_publication_date", "document.first_publication_date":
			sort = append(sort, bson.E{Key: "published_at", Value: dir})
		case "my.uid", "document.uid":
			sort = append(sort, bson.E{Key: "_id", Value: dir})
		}
	}
	if len(sort) == 0 {
		sort = bson.D{{Key: "published_at", Value: -1}}
	}
	return sort
}

// buildProjection maps "template-post.title" style fetch fields onto data.*.
func buildProjection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}
	projection := bson.M{
		"_id":                   1,
		"doc_id":                1,
		"type":                  1,
		"last_publication_date": 1,
		"published_at":          1,
	}
	for _, f := range fields {
		if i := strings.IndexByte(f, '.'); i >= 0 {
			projection["data."+f[i+1:]] = 1
		}
	}
	return projection
}
