package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edu-collective-api/api/swagger"
	"github.com/noah-isme/edu-collective-api/internal/events"
	"github.com/noah-isme/edu-collective-api/internal/handler"
	"github.com/noah-isme/edu-collective-api/internal/ledger"
	"github.com/noah-isme/edu-collective-api/internal/middleware"
	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/internal/repository"
	"github.com/noah-isme/edu-collective-api/internal/service"
	"github.com/noah-isme/edu-collective-api/pkg/cache"
	"github.com/noah-isme/edu-collective-api/pkg/clock"
	"github.com/noah-isme/edu-collective-api/pkg/config"
	"github.com/noah-isme/edu-collective-api/pkg/database"
	"github.com/noah-isme/edu-collective-api/pkg/jobs"
	"github.com/noah-isme/edu-collective-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-collective-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-collective-api/pkg/middleware/requestid"
	"github.com/noah-isme/edu-collective-api/pkg/storage"
)

// @title Edu Collective API
// @version 1.0.0
// @description Role-governed organization engine: admission proposals, paid course catalog, treasury-backed payouts.
// @BasePath /api/v1
// @schemes http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the identity token.

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Events.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)

	var publisher events.Publisher
	if cfg.Events.Enabled && redisClient != nil {
		publisher = events.NewRedisPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen, logr)
	} else {
		publisher = events.NewLogPublisher(logr)
	}

	ledgerClient := ledger.NewClient(cfg.Ledger)
	clk := clock.System{}

	memberRepo := repository.NewMemberRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	entryRepo := repository.NewTreasuryEntryRepository(db)
	statementRepo := repository.NewStatementRepository(db)

	registrySvc := service.NewRegistryService(memberRepo, clk, logr)
	if err := registrySvc.SeedBoard(rootCtx, seedAccounts(cfg.Org.BoardSeeds)); err != nil {
		logr.Sugar().Fatalw("failed to seed board members", "error", err)
	}

	treasurySvc := service.NewTreasuryService(service.TreasuryServiceParams{
		Ledger:   ledgerClient,
		Journal:  entryRepo,
		Registry: registrySvc,
		Cache:    cacheSvc,
		DB:       db,
		Events:   publisher,
		Metrics:  metricsSvc,
		Clock:    clk,
		Logger:   logr,
		Account:  models.Account(cfg.Org.TreasuryAccount),
	})

	adminSvc := service.NewAdminService(service.AdminServiceParams{
		Settings:        settingRepo,
		Treasury:        treasurySvc,
		Journal:         entryRepo,
		Audit:           memberRepo,
		Events:          publisher,
		Metrics:         metricsSvc,
		Clock:           clk,
		Logger:          logr,
		Owner:           models.Account(cfg.Org.OwnerAccount),
		DefaultDuration: cfg.Org.ProposalDuration,
	})

	proposalSvc := service.NewProposalService(service.ProposalServiceParams{
		Repo:      proposalRepo,
		Registry:  registrySvc,
		Durations: adminSvc,
		DB:        db,
		Events:    publisher,
		Metrics:   metricsSvc,
		Clock:     clk,
		Logger:    logr,
	})

	courseSvc := service.NewCourseService(service.CourseServiceParams{
		Repo:     courseRepo,
		Registry: registrySvc,
		Cache:    cacheSvc,
		Events:   publisher,
		Metrics:  metricsSvc,
		Clock:    clk,
		Logger:   logr,
	})

	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Repo:     enrollmentRepo,
		Courses:  courseRepo,
		Registry: registrySvc,
		Treasury: treasurySvc,
		Journal:  entryRepo,
		DB:       db,
		Events:   publisher,
		Metrics:  metricsSvc,
		Clock:    clk,
		Logger:   logr,
		Owner:    models.Account(cfg.Org.OwnerAccount),
	})

	ratingSvc := service.NewRatingService(service.RatingServiceParams{
		Repo:        ratingRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Registry:    registrySvc,
		Treasury:    treasurySvc,
		Journal:     entryRepo,
		DB:          db,
		Events:      publisher,
		Metrics:     metricsSvc,
		Clock:       clk,
		Logger:      logr,
	})

	overviewSvc := service.NewOverviewService(service.OverviewServiceParams{
		Members:     memberRepo,
		Proposals:   proposalRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Treasury:    treasurySvc,
		Cache:       cacheSvc,
		Metrics:     metricsSvc,
		Clock:       clk,
		Logger:      logr,
		CacheTTL:    cfg.Overview.CacheTTL,
	})

	var statementSvc *service.StatementService
	if cfg.Statements.Enabled {
		store, err := storage.NewLocalStorage(cfg.Statements.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init statement storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Statements.SignedURLSecret, cfg.Statements.SignedURLTTL)
		exporter := service.NewStatementExportService(entryRepo, courseRepo, store, signer, service.StatementExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Statements.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewStatementWorker(statementRepo, exporter, cfg.Statements.WorkerRetries, logr)
		statementQueue := jobs.NewQueue("statements", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Statements.WorkerConcurrency,
			MaxRetries: cfg.Statements.WorkerRetries,
			Logger:     logr,
		})
		statementQueue.Start(rootCtx)
		defer statementQueue.Stop()

		statementSvc = service.NewStatementService(statementRepo, courseRepo, registrySvc, statementQueue, exporter, logr, service.StatementServiceConfig{
			ResultTTL:       cfg.Statements.SignedURLTTL,
			CleanupInterval: cfg.Statements.CleanupInterval,
			MaxRetries:      cfg.Statements.WorkerRetries,
		})
		statementSvc.RecoverPendingJobs(rootCtx)
		statementSvc.StartCleanup(rootCtx)
	}

	router := buildRouter(cfg, logr, routerDeps{
		db:          db,
		redis:       redisClient,
		metrics:     metricsSvc,
		members:     memberRepo,
		registry:    registrySvc,
		proposals:   proposalSvc,
		courses:     courseSvc,
		enrollments: enrollmentSvc,
		ratings:     ratingSvc,
		treasury:    treasurySvc,
		admin:       adminSvc,
		overview:    overviewSvc,
		statements:  statementSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
	stopWorkers()
	logr.Sugar().Infow("server stopped")
}

func seedAccounts(raw []string) []models.Account {
	accounts := make([]models.Account, 0, len(raw))
	for _, account := range raw {
		accounts = append(accounts, models.Account(account))
	}
	return accounts
}

type routerDeps struct {
	db          *sqlx.DB
	redis       *redis.Client
	metrics     *service.MetricsService
	members     *repository.MemberRepository
	registry    *service.RegistryService
	proposals   *service.ProposalService
	courses     *service.CourseService
	enrollments *service.EnrollmentService
	ratings     *service.RatingService
	treasury    *service.TreasuryService
	admin       *service.AdminService
	overview    *service.OverviewService
	statements  *service.StatementService
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db, deps.redis)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	proposalHandler := handler.NewProposalHandler(deps.proposals)
	memberHandler := handler.NewMemberHandler(deps.registry)
	courseHandler := handler.NewCourseHandler(deps.courses)
	enrollmentHandler := handler.NewEnrollmentHandler(deps.enrollments)
	ratingHandler := handler.NewRatingHandler(deps.ratings)
	treasuryHandler := handler.NewTreasuryHandler(deps.treasury)
	adminHandler := handler.NewAdminHandler(deps.admin)
	overviewHandler := handler.NewOverviewHandler(deps.overview)

	api := r.Group(cfg.APIPrefix)
	authed := api.Group("", middleware.Identity(cfg.JWT.Secret))

	if deps.statements != nil {
		statementHandler := handler.NewStatementHandler(deps.statements)
		// Token-authenticated download sits outside the identity gate.
		api.GET("/statements/download/:token", statementHandler.Download)
		authed.POST("/statements", statementHandler.Create)
		authed.GET("/statements/:id", statementHandler.Status)
	}

	if cfg.Overview.Enabled {
		authed.GET("/overview", overviewHandler.Snapshot)
	}

	authed.POST("/proposals", middleware.Audit(deps.members, models.AuditActionProposalCreate, "proposals"), proposalHandler.Create)
	authed.GET("/proposals", proposalHandler.List)
	authed.GET("/proposals/:id", proposalHandler.Get)
	authed.POST("/proposals/:id/votes", middleware.Audit(deps.members, models.AuditActionProposalVote, "proposals"), proposalHandler.Vote)
	authed.POST("/proposals/:id/execute", middleware.Audit(deps.members, models.AuditActionProposalExecute, "proposals"), proposalHandler.Execute)

	authed.GET("/members", memberHandler.List)
	authed.GET("/members/:account", memberHandler.Get)

	authed.POST("/courses", middleware.Audit(deps.members, models.AuditActionCourseCreate, "courses"), courseHandler.Create)
	authed.GET("/courses", courseHandler.List)
	authed.GET("/courses/:id", courseHandler.Get)
	authed.DELETE("/courses/:id", middleware.Audit(deps.members, models.AuditActionCourseRemove, "courses"), courseHandler.Remove)

	authed.POST("/courses/:id/applications", middleware.Audit(deps.members, models.AuditActionEnrollmentApply, "enrollments"), enrollmentHandler.Apply)
	authed.POST("/courses/:id/applications/:student/votes", middleware.Audit(deps.members, models.AuditActionEnrollmentVote, "enrollments"), enrollmentHandler.Vote)
	authed.POST("/courses/:id/enrollment/confirm", middleware.Audit(deps.members, models.AuditActionEnrollmentPay, "enrollments"), enrollmentHandler.Confirm)
	authed.GET("/courses/:id/applications/:student", enrollmentHandler.GetApplication)
	authed.POST("/courses/:id/students/:student/complete", middleware.Audit(deps.members, models.AuditActionCourseComplete, "enrollments"), enrollmentHandler.Complete)
	authed.GET("/enrollments", enrollmentHandler.List)

	authed.POST("/courses/:id/ratings", middleware.Audit(deps.members, models.AuditActionRatingGive, "ratings"), ratingHandler.Rate)
	authed.GET("/courses/:id/ratings", ratingHandler.ListForCourse)
	authed.GET("/teachers/:account/rating", ratingHandler.TeacherRating)
	authed.POST("/courses/:id/bonus", middleware.Audit(deps.members, models.AuditActionBonusDistribute, "ratings"), ratingHandler.DistributeBonus)

	authed.GET("/treasury", treasuryHandler.Overview)
	authed.GET("/treasury/entries", treasuryHandler.Entries)
	authed.POST("/treasury/payouts", middleware.Audit(deps.members, models.AuditActionTreasuryPayout, "treasury"), treasuryHandler.Payout)

	admin := authed.Group("/admin", middleware.AdminKey(cfg.Org.AdminKeyHash))
	admin.GET("/settings", adminHandler.Settings)
	admin.PUT("/settings/proposal-duration", middleware.Audit(deps.members, models.AuditActionSettingsUpdate, "settings"), adminHandler.SetProposalDuration)
	admin.POST("/rescue", middleware.Audit(deps.members, models.AuditActionFundsRescue, "treasury"), adminHandler.Rescue)

	return r
}
