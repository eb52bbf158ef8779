package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/jkimaru/registrar-api/api/swagger"
	"github.com/jkimaru/registrar-api/internal/handler"
	"github.com/jkimaru/registrar-api/internal/identity"
	"github.com/jkimaru/registrar-api/internal/middleware"
	"github.com/jkimaru/registrar-api/internal/models"
	"github.com/jkimaru/registrar-api/internal/repository"
	"github.com/jkimaru/registrar-api/internal/service"
	"github.com/jkimaru/registrar-api/pkg/cache"
	"github.com/jkimaru/registrar-api/pkg/config"
	"github.com/jkimaru/registrar-api/pkg/database"
	"github.com/jkimaru/registrar-api/pkg/logger"
	corsmiddleware "github.com/jkimaru/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/jkimaru/registrar-api/pkg/middleware/requestid"
)

// @title Registrar API
// @version 0.1.0
// @description Student onboarding and academic fee lifecycle pipeline
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	calendarRepo := repository.NewCalendarRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	clearanceRepo := repository.NewClearanceRepository(db)
	userRepo := repository.NewUserRepository(db)

	provider := identity.NewLocalProvider(userRepo, logr)

	calendarCache := cacheClient(cfg, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, calendarCache, cfg.Calendar.CacheTTL, metrics, validate, logr)
	curriculumSvc := service.NewCurriculumService(curriculumRepo, logr)
	feeSvc := service.NewFeeService(feeRepo, studentRepo, metrics, validate, logr)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, feeRepo, calendarRepo, metrics, logr)
	registrationSvc := service.NewRegistrationService(
		studentRepo,
		userRepo,
		enrollmentRepo,
		curriculumRepo,
		curriculumSvc,
		calendarSvc,
		feeSvc,
		invoiceSvc,
		provider,
		service.RegistrationConfig{
			InstitutionDomain: cfg.Registrar.InstitutionDomain,
			InitialPassword:   cfg.Registrar.InitialPassword,
		},
		metrics,
		validate,
		logr,
	)
	clearanceSvc := service.NewClearanceService(clearanceRepo, calendarSvc, userRepo, logr)
	authSvc := service.NewAuthService(provider, userRepo, cfg.JWT, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	curriculumHandler := handler.NewCurriculumHandler(curriculumSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc)
	clearanceHandler := handler.NewClearanceHandler(clearanceSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/calendar/active", calendarHandler.Active)
	authed.GET("/curriculum", curriculumHandler.List)
	authed.GET("/curriculum/resolve", curriculumHandler.Resolve)
	authed.GET("/invoices/:id", invoiceHandler.Get)
	authed.GET("/clearance/types", clearanceHandler.ListTypes)
	authed.POST("/clearance/requests", clearanceHandler.Request)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/calendar/years", calendarHandler.ListYears)
	admin.POST("/calendar/years", calendarHandler.CreateYear)
	admin.GET("/calendar/years/:id", calendarHandler.GetYear)
	admin.POST("/calendar/years/:id/activate", calendarHandler.ActivateYear)
	admin.GET("/calendar/years/:id/terms", calendarHandler.ListTerms)
	admin.POST("/calendar/terms", calendarHandler.CreateTerm)
	admin.POST("/calendar/terms/:id/activate", calendarHandler.ActivateTerm)

	admin.GET("/students", registrationHandler.ListStudents)
	admin.POST("/students/register", registrationHandler.Register)
	admin.GET("/students/:id/subjects", registrationHandler.StudentSubjects)
	admin.GET("/students/:id/status", registrationHandler.StudentStatus)
	admin.POST("/students/:id/sync-subjects", registrationHandler.SyncSubjects)
	admin.GET("/enrollments", registrationHandler.ListEnrollments)
	admin.PATCH("/enrollments/:id/status", registrationHandler.UpdateEnrollmentStatus)

	admin.GET("/fees/structures", feeHandler.ListStructures)
	admin.POST("/fees/structures", feeHandler.CreateStructure)
	admin.GET("/fees/assignments/preview", feeHandler.Preview)
	admin.POST("/fees/assignments/commit", feeHandler.Commit)

	admin.GET("/invoices", invoiceHandler.List)
	admin.GET("/invoices/preview", invoiceHandler.Preview)
	admin.POST("/invoices/commit", invoiceHandler.Commit)
	admin.POST("/invoices/:id/payments", invoiceHandler.RecordPayment)

	admin.GET("/clearance/requests/pending", clearanceHandler.ListPending)
	admin.POST("/clearance/requests/:id/decision", clearanceHandler.Decide)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

// cacheClient connects to redis when enabled; the calendar service degrades
// to uncached lookups on a nil client.
func cacheClient(cfg *config.Config, logr *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, calendar cache disabled", zap.Error(err))
		return nil
	}
	return client
}
