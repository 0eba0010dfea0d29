package app

import (
	"context"
	"fmt"

	"github.com/upb/siamonitor/config"
	"github.com/upb/siamonitor/internal/auth"
	"github.com/upb/siamonitor/internal/observability"
	"github.com/upb/siamonitor/middleware"
	"github.com/upb/siamonitor/oidc"
	"github.com/upb/siamonitor/repositories"
	"github.com/upb/siamonitor/repositories/postgres"
	"github.com/upb/siamonitor/services/admin"
	"github.com/upb/siamonitor/services/files"
	"github.com/upb/siamonitor/services/grading"
	"github.com/upb/siamonitor/services/policy"
	"github.com/upb/siamonitor/services/profile"
	"github.com/upb/siamonitor/services/project"
	"github.com/upb/siamonitor/storage"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Profiles   repositories.ProfileRepository
	Projects   repositories.ProjectRepository
	Milestones repositories.MilestoneRepository
	Grades     repositories.GradeRepository
	Wipe       repositories.WipeRepository
	TxManager  repositories.TransactionManager

	// Auth
	KeySet         *oidc.KeySetCache
	Verifier       *oidc.Verifier
	AuthMiddleware *middleware.AuthMiddleware

	// Domain
	Evaluator *policy.Evaluator
	Store     *storage.LocalStore

	ProfileService *profile.Service
	ProjectService *project.Service
	GradingService *grading.Service
	FileService    *files.Service
	AdminService   *admin.Service
}

// NewDependencies opens the database and wires every component
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesWithFactory(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesWithFactory wires every component over an open repository factory
func NewDependenciesWithFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     observability.NewMetrics(),
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Profiles = repos.Profiles
	d.Projects = repos.Projects
	d.Milestones = repos.Milestones
	d.Grades = repos.Grades
	d.Wipe = repos.Wipe
	d.TxManager = d.RepoFactory.GetTransactionManager()

	if err := d.Metrics.RegisterDB(d.DB.DB, "siamonitor"); err != nil {
		d.Logger.Warn("failed to register database metrics", zap.Error(err))
	}

	d.Logger.Info("repositories initialized")
}

// initAuth builds the key set cache, the token verifier and the auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) error {
	client, err := oidc.NewHTTPClient(cfg.OIDC.CABundle, cfg.OIDC.JWKSTimeout)
	if err != nil {
		return err
	}

	d.KeySet = oidc.NewKeySetCache(oidc.KeySetConfig{
		URL:          cfg.OIDC.JWKSURL,
		TTL:          cfg.OIDC.JWKSTTL,
		FetchTimeout: cfg.OIDC.JWKSTimeout,
	}, client, oidc.SystemClock{}, d.Logger.Named("jwks"))
	d.KeySet.SetObserver(d.Metrics)

	d.Verifier = oidc.NewVerifier(oidc.VerifierConfig{
		Issuer:           cfg.OIDC.Issuer,
		FrontendClientID: cfg.OIDC.FrontendClientID,
		BackendAudience:  cfg.OIDC.BackendAudience,
		RequireExp:       cfg.OIDC.RequireExp,
		RequireAudience:  cfg.OIDC.RequireAudience,
	}, d.KeySet, oidc.SystemClock{}, d.Logger.Named("verifier"))
	d.Verifier.SetObserver(d.Metrics)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Verifier, auth.Options{
		ClientID:           cfg.OIDC.FrontendClientID,
		ClientRoleFallback: cfg.OIDC.ClientRoleFallback,
	}, d.Logger)

	d.Logger.Info("token verification configured",
		zap.String("issuer", cfg.OIDC.Issuer),
		zap.String("jwks_url", cfg.OIDC.JWKSURL),
		zap.Duration("jwks_ttl", cfg.OIDC.JWKSTTL),
		zap.Bool("custom_ca", cfg.OIDC.CABundle != ""))
	return nil
}

// initServices builds the policy evaluator, artifact store and domain services
func (d *Dependencies) initServices(cfg *config.Config) error {
	rule, err := policy.ParseUploadRule(cfg.Uploads.Policy)
	if err != nil {
		return err
	}
	d.Evaluator = policy.NewEvaluator(rule, d.Logger.Named("policy"))

	store, err := storage.NewLocalStore(cfg.Uploads.Root, d.Logger.Named("storage"))
	if err != nil {
		return err
	}
	d.Store = store

	d.ProfileService = profile.NewService(d.Profiles, d.Projects, d.TxManager, d.Evaluator, d.Logger)
	d.ProjectService = project.NewService(d.Projects, d.Profiles, d.TxManager, d.Evaluator, d.Logger)
	d.GradingService = grading.NewService(d.Projects, d.Milestones, d.Grades, d.Evaluator, d.Logger)
	d.FileService = files.NewService(d.Projects, d.Milestones, d.Grades, d.Store, d.Evaluator, cfg.Uploads.MaxBytes, d.Logger)
	d.AdminService = admin.NewService(d.Wipe, d.Store, d.TxManager, d.Evaluator, d.Logger)

	d.Logger.Info("services initialized",
		zap.String("upload_policy", string(rule)),
		zap.String("upload_root", store.Root()),
		zap.Int64("max_upload_bytes", cfg.Uploads.MaxBytes),
		zap.Duration("upload_timeout", cfg.Uploads.TransferTimeout))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
