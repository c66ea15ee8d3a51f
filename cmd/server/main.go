package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/PostFeed/cmd/server/factory"
	"github.com/PostFeed/internal/app"
	"github.com/PostFeed/internal/domain"
	"github.com/PostFeed/internal/infra/tracing"
	transport "github.com/PostFeed/internal/transport/http"
	"github.com/PostFeed/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			// Config
			factory.NewQueryConfig,

			// Infrastructure
			factory.NewPrismicClient,

			// Services
			factory.NewPostTransformer,
			factory.NewSessionRegistry,

			// HTTP Server
			transport.NewHTTPServer,
		),
		backendModule(cfg),
		fx.Invoke(
			SetupTracer,
			RegisterSessionHooks,
			StartServer,
		),
	).Run()
}

// backendModule selects where feeds are read from.
func backendModule(cfg *config.Config) fx.Option {
	if !cfg.UsesMongo() {
		return fx.Module("prismic",
			fx.Provide(factory.PrismicRepositoryClient),
			fx.Invoke(WaitForRepository),
		)
	}

	return fx.Module("mongo",
		fx.Provide(
			factory.NewMongoClient,
			factory.NewMongoRepository,
			factory.MongoRepositoryClient,
			fx.Annotate(
				factory.NewMainKafkaProducer,
				fx.ResultTags(`name:"main_producer"`),
			),
			fx.Annotate(
				factory.NewDLQProducer,
				fx.ResultTags(`name:"dlq_producer"`),
			),
			fx.Annotate(
				factory.NewKafkaConsumer,
				fx.ParamTags(``, `name:"dlq_producer"`, ``),
			),
			fx.Annotate(
				factory.NewEventProducer,
				fx.ParamTags(`name:"main_producer"`),
			),
			factory.NewMirrorService,
			factory.NewDocumentSyncService,
		),
		fx.Invoke(
			WaitForReady, // Block until dependencies are ready
			RegisterSyncHooks,
		),
	)
}

// --- Invokers ---

func RegisterSessionHooks(lc fx.Lifecycle, sessions *app.SessionRegistry) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go sessions.Start(ctx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

func RegisterSyncHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	mirror *app.MirrorService,
	syncService *app.DocumentSyncService,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if cfg.MirrorEnabled {
				go mirror.Start(ctx)
			}
			syncService.Start(ctx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
}

func SetupTracer(lc fx.Lifecycle, cfg *config.Config) error {
	ctx := context.Background()
	shutdown, err := tracing.InitTracer(ctx, cfg.OtelServiceName, cfg.OtelEnabled)
	if err != nil {
		slog.Error("Failed to initialize tracer", "error", err)
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Info("Shutting down tracer provider")
			return shutdown(ctx)
		},
	})
	return nil
}

// WaitForReady blocks until the mirror's dependencies are ready.
func WaitForReady(
	cfg *config.Config,
	mongoClient *mongo.Client,
) error {
	ctx := context.Background()
	waiter := app.NewReadinessWaiter(
		app.MongoCheck(mongoClient),
		app.KafkaCheck(cfg.KafkaBrokers, cfg.KafkaTopic),
	)
	return waiter.WaitForDependencies(ctx)
}

// WaitForRepository blocks until the remote repository answers a query.
func WaitForRepository(client domain.RepositoryClient, qc domain.QueryConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return app.NewReadinessWaiter(app.RepositoryCheck(client, qc)).WaitForDependencies(ctx)
}

func StartServer(lc fx.Lifecycle, server *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				slog.Info("Starting feed API server", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
