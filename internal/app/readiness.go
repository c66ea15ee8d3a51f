package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/predicate"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ReadinessCheck probes one dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type ReadinessWaiter struct {
	checks   []ReadinessCheck
	interval time.Duration
}

func NewReadinessWaiter(checks ...ReadinessCheck) *ReadinessWaiter {
	return &ReadinessWaiter{
		checks:   checks,
		interval: 2 * time.Second,
	}
}

// WaitForDependencies blocks until every check passes once, in order.
// There is no timeout: dependencies may be slow to start in dev
// environments, and ctx bounds the wait.
func (w *ReadinessWaiter) WaitForDependencies(ctx context.Context) error {
	for _, c := range w.checks {
		if err := w.waitFor(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (w *ReadinessWaiter) waitFor(ctx context.Context, c ReadinessCheck) error {
	slog.Info("Waiting for dependency...", "dependency", c.Name)
	if err := c.Check(ctx); err == nil {
		slog.Info("Dependency is ready", "dependency", c.Name)
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Check(ctx); err != nil {
				slog.Warn("Dependency not ready yet", "dependency", c.Name, "error", err)
				continue
			}
			slog.Info("Dependency is ready", "dependency", c.Name)
			return nil
		}
	}
}

// MongoCheck pings the primary.
func MongoCheck(client *mongo.Client) ReadinessCheck {
	return ReadinessCheck{
		Name: "mongodb",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
	}
}

// KafkaCheck verifies the brokers accept connections and topic has partitions.
func KafkaCheck(brokers []string, topic string) ReadinessCheck {
	return ReadinessCheck{
		Name: "kafka",
		Check: func(ctx context.Context) error {
			return checkKafka(brokers, topic)
		},
	}
}

// RepositoryCheck sends a one-document query to the content repository.
func RepositoryCheck(client domain.RepositoryClient, cfg domain.QueryConfig) ReadinessCheck {
	return ReadinessCheck{
		Name: "content-repository",
		Check: func(ctx context.Context) error {
			_, err := client.Query(ctx, domain.QueryRequest{
				Page:      1,
				PageSize:  1,
				Predicate: predicate.TypeFilter(cfg.DocumentType),
				Orderings: cfg.Orderings,
			})
			return err
		},
	}
}

func checkKafka(brokers []string, topic string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	for _, broker := range brokers {
		conn, err := net.DialTimeout("tcp", broker, 2*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to broker %s: %w", broker, err)
		}
		_ = conn.Close()
	}

	// Topic metadata from the first broker is enough.
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		return fmt.Errorf("failed to read partitions for topic %s: %w", topic, err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", topic)
	}
	return nil
}
