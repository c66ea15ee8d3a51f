package factory

import (
	"errors"
	"log/slog"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/prismic"
	"github.com/PostFeed/internal/infra/repository"
	"github.com/PostFeed/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewMongoRepository creates the MongoDB content store.
func NewMongoRepository(client *mongo.Client, cfg *config.Config) (*repository.MongoRepository, error) {
	if cfg.MongoDBName == "" {
		return nil, errors.New("mongo database name not configured")
	}
	if cfg.MongoColl == "" {
		return nil, errors.New("mongo collection name not configured")
	}
	return repository.NewMongoRepository(client, cfg.MongoDBName, cfg.MongoColl)
}

// PrismicRepositoryClient serves feeds straight from the remote repository.
func PrismicRepositoryClient(c *prismic.Client) domain.RepositoryClient {
	slog.Info("Registered repository backend", "backend", config.BackendPrismic)
	return c
}

// MongoRepositoryClient serves feeds from the local mirror.
func MongoRepositoryClient(r *repository.MongoRepository) domain.RepositoryClient {
	slog.Info("Registered repository backend", "backend", config.BackendMongo)
	return r
}

// NewQueryConfig validates the listing query parameters.
func NewQueryConfig(cfg *config.Config) (domain.QueryConfig, error) {
	return cfg.QueryConfig()
}
