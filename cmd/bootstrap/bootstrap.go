package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic-booking/config"
	deliveryHttp "clinic-booking/internal/delivery/http"
	"clinic-booking/internal/delivery/http/handler"
	"clinic-booking/internal/delivery/http/middleware"
	"clinic-booking/internal/infrastructure/cache"
	"clinic-booking/internal/infrastructure/database"
	"clinic-booking/internal/repository"
	"clinic-booking/internal/service"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/jwt"
	"clinic-booking/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	Usecases    *Usecases

	rateLimiter *middleware.RateLimiter
}

// Usecases groups the business layer so the CLI can reach it without the
// HTTP server.
type Usecases struct {
	Auth             usecase.AuthUsecase
	Appointment      usecase.AppointmentUsecase
	AppointmentQuery usecase.AppointmentQueryUsecase
	Slot             usecase.SlotUsecase
	Doctor           usecase.DoctorUsecase
	Patient          usecase.PatientUsecase
	AuditLog         usecase.AuditLogUsecase
}

// New creates a new App instance with all dependencies initialized
func New(cfg *config.Config) (*App, error) {
	log := SetupLogger(cfg.App.LogLevel)
	app := &App{Config: cfg}

	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	log.Info("Database connected successfully")

	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.RedisClient = redisClient
	log.Info("Redis connected successfully")

	jwtService := jwt.NewJWTService(cfg.JWT)
	tokenStore := service.NewRedisTokenStore(redisClient, log)
	slotCache := service.NewRedisBookedSlotCache(redisClient, log, cfg.Booking.SlotCacheTTL)

	app.Usecases = NewUsecases(cfg, db, log, jwtService, tokenStore, slotCache)
	app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := NewRouter(cfg, log, app.Usecases, jwtService, tokenStore, app.rateLimiter)
	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

// SetupLogger configures the standard logrus logger and returns it.
func SetupLogger(level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// NewUsecases wires repositories and services into the business layer.
func NewUsecases(
	cfg *config.Config,
	db *gorm.DB,
	log *logrus.Logger,
	jwtService *jwt.JWTService,
	tokenStore service.TokenStore,
	slotCache service.BookedSlotCache,
) *Usecases {
	userRepo := repository.NewUserRepository()
	doctorRepo := repository.NewDoctorRepository()
	patientRepo := repository.NewPatientRepository()
	appointmentRepo := repository.NewAppointmentRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	auditService := service.NewAuditService(log, auditLogRepo)
	resolver := usecase.NewPatientResolver(log, patientRepo)

	return &Usecases{
		Auth:             usecase.NewAuthUsecase(db, log, userRepo, patientRepo, jwtService, tokenStore, auditService),
		Appointment:      usecase.NewAppointmentUsecase(db, log, cfg.Booking, doctorRepo, appointmentRepo, resolver, slotCache, auditService),
		AppointmentQuery: usecase.NewAppointmentQueryUsecase(db, log, doctorRepo, patientRepo, appointmentRepo),
		Slot:             usecase.NewSlotUsecase(db, log, appointmentRepo, slotCache),
		Doctor:           usecase.NewDoctorUsecase(db, log, userRepo, doctorRepo, patientRepo, appointmentRepo, tokenStore, auditService),
		Patient:          usecase.NewPatientUsecase(db, log, userRepo, doctorRepo, patientRepo, appointmentRepo, tokenStore, auditService),
		AuditLog:         usecase.NewAuditLogUsecase(db, log, auditLogRepo),
	}
}

// NewRouter builds the HTTP handler tree on top of the usecases.
func NewRouter(
	cfg *config.Config,
	log *logrus.Logger,
	uc *Usecases,
	jwtService *jwt.JWTService,
	tokenStore service.TokenStore,
	rateLimiter *middleware.RateLimiter,
) http.Handler {
	customValidator := validator.NewValidator()

	authHandler := handler.NewAuthHandler(uc.Auth, customValidator)
	appointmentHandler := handler.NewAppointmentHandler(uc.Appointment, uc.AppointmentQuery, uc.Slot, customValidator)
	doctorHandler := handler.NewDoctorHandler(uc.Doctor, customValidator)
	patientHandler := handler.NewPatientHandler(uc.Patient, customValidator)
	auditLogHandler := handler.NewAuditLogHandler(uc.AuditLog)

	authMiddleware := middleware.NewAuthMiddleware(jwtService, tokenStore, log)
	corsMiddleware := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)

	router := deliveryHttp.NewRouter(
		log,
		authHandler,
		appointmentHandler,
		doctorHandler,
		patientHandler,
		auditLogHandler,
		authMiddleware,
		corsMiddleware,
		rateLimiter,
	)
	return router.Setup()
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a listener
// failure, then shuts down gracefully.
func (app *App) Run() error {
	serverErr := make(chan error, 1)
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logrus.Info("Shutting down server...")
	case err := <-serverErr:
		runErr = fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	app.Close()
	logrus.Info("Server shutdown complete")

	return runErr
}

// Close stops background workers and closes all connections.
func (app *App) Close() {
	if app.rateLimiter != nil {
		app.rateLimiter.Stop()
	}

	if app.DB != nil {
		if sqlDB, err := app.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logrus.Warnf("Failed to close database: %v", err)
			}
		}
	}

	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			logrus.Warnf("Failed to close Redis: %v", err)
		}
	}
}
