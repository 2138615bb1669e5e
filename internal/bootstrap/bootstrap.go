// Package bootstrap provides dependency initialization for the VeoStudio API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/veostudio/veostudio-api/internal/config"
	"github.com/veostudio/veostudio-api/internal/generator"
	"github.com/veostudio/veostudio-api/internal/job"
	"github.com/veostudio/veostudio-api/internal/media"
	"github.com/veostudio/veostudio-api/internal/prompt"
	"github.com/veostudio/veostudio-api/internal/storage"
	"github.com/veostudio/veostudio-api/internal/veo"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	GenerateService *job.GenerateService
	Refiner         prompt.Refiner
	ObjectStore     storage.ObjectStore

	mongoClient *mongo.Client
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize the job store
	store, err := initStore(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}

	// Initialize the generation engine client
	veoClient, err := veo.NewClient(cfg.GenAIModel, veo.WithAPIKey(cfg.GenAIAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create veo client: %w", err)
	}
	gen := generator.NewVeoAdapter(veoClient)

	// Initialize the object store
	objects, err := initObjectStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.ObjectStore = objects

	// Initialize the media packager
	packager := media.NewFFmpegPackager(cfg.FFmpegBin)

	// Initialize the optional prompt refiner
	if cfg.PromptEnabled() {
		refiner, err := prompt.NewOpenAIClient(cfg.OpenAIModel, prompt.WithAPIKey(cfg.OpenAIAPIKey))
		if err != nil {
			return nil, fmt.Errorf("create prompt client: %w", err)
		}
		deps.Refiner = refiner
		logger.Info("prompt refinement configured",
			slog.String("model", cfg.OpenAIModel),
		)
	} else {
		logger.Info("prompt refinement disabled, OPENAI_API_KEY not set")
	}

	deps.GenerateService = job.NewGenerateService(
		store,
		gen,
		objects,
		packager,
		logger,
		job.WithPollInterval(cfg.PollInterval),
		job.WithPollTimeout(cfg.PollTimeout),
		job.WithArtifactDirs(cfg.VideoDir, cfg.HLSDir),
	)

	return deps, nil
}

// Close releases held connections.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.mongoClient != nil {
		return d.mongoClient.Disconnect(ctx)
	}
	return nil
}

// initStore creates the job store backend based on configuration. Without
// a MongoDB connection string, records live in memory and are lost on
// restart.
func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (job.Store, error) {
	if !cfg.MongoEnabled() {
		logger.Info("in-memory job store configured")
		return job.NewMemoryStore(), nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	deps.mongoClient = client

	store, err := job.NewMongoStore(ctx, client.Database(cfg.MongoDB))
	if err != nil {
		return nil, fmt.Errorf("create MongoDB job store: %w", err)
	}
	logger.Info("MongoDB job store configured",
		slog.String("database", cfg.MongoDB),
	)
	return store, nil
}

// initObjectStore creates the artifact publishing backend based on
// configuration. Without S3 settings, artifacts are only kept locally and
// served through the file routes.
func initObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if !cfg.S3Enabled() {
		logger.Info("local artifact serving configured",
			slog.String("video_dir", cfg.VideoDir),
			slog.String("hls_dir", cfg.HLSDir),
		)
		return storage.NewLocalStore(cfg.VideoDir, cfg.HLSDir), nil
	}

	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Public:          cfg.S3Public,
		SignedURLTTL:    cfg.SignedURLTTL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 store: %w", err)
	}
	logger.Info("S3 artifact store configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
		slog.Bool("public", cfg.S3Public),
	)
	return s3Store, nil
}
