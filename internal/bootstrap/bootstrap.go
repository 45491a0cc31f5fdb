// Package bootstrap wires configuration, storage, services and HTTP handlers
// together. Both the API server and aitsctl build on it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aits/backend/internal/app/controllers"
	"github.com/aits/backend/internal/app/migrations"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/app/routes"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/config"
	"github.com/aits/backend/internal/db"
	"github.com/aits/backend/internal/middleware"
	pkgAuth "github.com/aits/backend/internal/pkg/auth"
	"github.com/aits/backend/internal/pkg/email"
	"github.com/aits/backend/internal/pkg/filestorage"
	"github.com/aits/backend/internal/pkg/helpers"
	"github.com/aits/backend/internal/pkg/logger"
	"github.com/aits/backend/internal/pkg/metrics"
	"github.com/aits/backend/internal/pkg/outbox"
	"github.com/aits/backend/internal/pkg/validation"
	"github.com/aits/backend/internal/pkg/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// DefaultConfigPath is used when CONFIG_PATH is unset.
const DefaultConfigPath = "configs/config.yaml"

// Dependencies holds all the application dependencies
type Dependencies struct {
	Config         *config.Config
	DB             *db.PostgresDB
	Store          *repositories.Repositories
	JWTService     *pkgAuth.JWTService
	FileStorage    *filestorage.LocalStorage
	Hub            *websocket.Hub
	Mailer         email.Mailer
	Dispatcher     *outbox.Dispatcher
	Services       *services.Services
	AuthMiddleware *middleware.AuthMiddleware
	Controllers    routes.Controllers
	WSHandler      *websocket.Handler
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	if configPath == "" {
		configPath = config.GetEnv("CONFIG_PATH", DefaultConfigPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logger.Configure(logger.ConfigFromStrings(cfg.Logging.Level, cfg.Logging.Format))

	lgr := logger.Get()
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase connects to PostgreSQL and, when auto_migrate is on, applies
// pending migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	if !cfg.Database.AutoMigrate {
		return database, nil
	}

	if _, err := RunMigrations(ctx, cfg, database, lgr); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// RunMigrations applies every pending file in the migrations directory.
func RunMigrations(ctx context.Context, cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (int, error) {
	migrator := migrations.NewMigrator(database.Pool, lgr)
	n, err := migrator.MigrateFromDirectory(ctx, cfg.Database.MigrationsDir)
	if err != nil {
		lgr.Error().Err(err).Str("dir", cfg.Database.MigrationsDir).Msg("Database migration error")
		return 0, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Int("applied", n).Msg("Database migrations up to date.")
	return n, nil
}

// NewJWTService builds the token service from the jwt config section.
func NewJWTService(cfg *config.Config) *pkgAuth.JWTService {
	return pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 7*24*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})
}

// NewMailer builds the configured email provider.
func NewMailer(cfg *config.Config, lgr zerolog.Logger) (email.Mailer, error) {
	return email.NewMailer(email.Config{
		Provider:       cfg.Email.Provider,
		Host:           cfg.Email.Host,
		Port:           cfg.Email.Port,
		Username:       cfg.Email.Username,
		Password:       cfg.Email.Password,
		FromName:       cfg.Email.FromName,
		FromEmail:      cfg.Email.FromEmail,
		UseTLS:         cfg.Email.UseTLS,
		SendGridAPIKey: cfg.Email.SendGridAPIKey,
		SubjectPrefix:  cfg.Email.SubjectPrefix,
	}, lgr.With().Str("component", "mailer").Logger())
}

// NewDispatcher builds the outbox dispatcher from the dispatcher config section.
func NewDispatcher(cfg *config.Config, store repositories.Store, mailer email.Mailer, lgr zerolog.Logger) *outbox.Dispatcher {
	d := cfg.Dispatcher
	return outbox.NewDispatcher(store.Outbox(), mailer, outbox.Config{
		PollInterval:   helpers.ParseDuration(d.PollInterval, 5*time.Second),
		BatchSize:      d.BatchSize,
		Concurrency:    d.Concurrency,
		MaxAttempts:    d.MaxAttempts,
		InitialBackoff: helpers.ParseDuration(d.InitialBackoff, 30*time.Second),
		MaxBackoff:     helpers.ParseDuration(d.MaxBackoff, time.Hour),
		Lease:          helpers.ParseDuration(d.Lease, 2*time.Minute),
	}, lgr.With().Str("component", "outbox").Logger())
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, DB: database, Logger: lgr}

	deps.Store = repositories.NewRepositories(database)

	var err error
	maxUpload := int64(cfg.Server.MaxUploadSizeMB) << 20
	deps.FileStorage, err = filestorage.NewLocalStorage(cfg.Server.StoragePath, cfg.Server.PublicURL, maxUpload)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	deps.JWTService = NewJWTService(cfg)
	deps.Hub = websocket.NewHub(lgr)

	deps.Mailer, err = NewMailer(cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}
	deps.Dispatcher = NewDispatcher(cfg, deps.Store, deps.Mailer, lgr)

	deps.Services = services.New(services.Deps{
		Store:     deps.Store,
		JWT:       deps.JWTService,
		Files:     deps.FileStorage,
		Publisher: deps.Hub,
		Logger:    lgr,
	})

	deps.AuthMiddleware = middleware.NewAuthMiddleware(deps.JWTService, deps.Store.Users())
	deps.Controllers = NewControllers(deps.Services, lgr)
	deps.WSHandler = websocket.NewHandler(deps.Hub, deps.JWTService, lgr)

	return deps, nil
}

// NewControllers builds the HTTP handlers on top of the services.
func NewControllers(svc *services.Services, lgr zerolog.Logger) routes.Controllers {
	return routes.Controllers{
		Auth:          controllers.NewAuthController(svc.Auth, lgr.With().Str("controller", "auth").Logger()),
		Issues:        controllers.NewIssueController(svc.Issues, lgr.With().Str("controller", "issues").Logger()),
		Workflow:      controllers.NewWorkflowController(svc.Workflow),
		Comments:      controllers.NewCommentController(svc.Comments),
		Attachments:   controllers.NewAttachmentController(svc.Attachments, lgr.With().Str("controller", "attachments").Logger()),
		Notifications: controllers.NewNotificationController(svc.Notifications),
		Profiles:      controllers.NewProfileController(svc.Profile),
	}
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// NewEngine builds a gin engine with the shared middleware chain and the
// operational endpoints. It does not mount the API.
func NewEngine(lgr zerolog.Logger, health HealthCheck) *gin.Engine {
	if err := validation.RegisterGinValidators(); err != nil {
		lgr.Error().Err(err).Msg("Failed to register request validators")
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(lgr), middleware.Metrics())

	router.GET("/health", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := NewEngine(lgr, func(ctx context.Context) error {
		return deps.DB.Pool.Ping(ctx)
	})

	routes.SetupSwagger(router)
	routes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)
	router.GET("/ws/notifications", deps.WSHandler.HandleConnection)

	return router
}
