package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-allocation-api/api/swagger"
	"github.com/noah-isme/exam-allocation-api/internal/handler"
	internalmiddleware "github.com/noah-isme/exam-allocation-api/internal/middleware"
	"github.com/noah-isme/exam-allocation-api/internal/models"
	"github.com/noah-isme/exam-allocation-api/internal/repository"
	"github.com/noah-isme/exam-allocation-api/internal/service"
	"github.com/noah-isme/exam-allocation-api/pkg/cache"
	"github.com/noah-isme/exam-allocation-api/pkg/config"
	"github.com/noah-isme/exam-allocation-api/pkg/database"
	"github.com/noah-isme/exam-allocation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-allocation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-allocation-api/pkg/middleware/requestid"
)

// @title Exam Allocation API
// @version 1.0.0
// @description Exam scheduling, system availability and reschedule engine
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Availability.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()

	examRepo := repository.NewExamRepository(db)
	instituteRepo := repository.NewInstituteRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.CacheTTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Availability.CacheTTL, logr, false)
	}

	validate := validator.New()
	scheduleSvc := service.NewExamScheduleService(examRepo, instituteRepo, studentRepo, auditRepo, db, cacheSvc, metricsSvc, cfg.Scheduling, validate, logr)
	rescheduleSvc := service.NewRescheduleService(examRepo, instituteRepo, auditRepo, db, cacheSvc, metricsSvc, cfg.Scheduling, validate, logr)
	exportSvc := service.NewExportService(examRepo, studentRepo, logr)
	verifier := service.NewTokenVerifier(cfg.JWT)

	deps := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, deps)
	examHandler := handler.NewExamHandler(scheduleSvc, exportSvc)
	rescheduleHandler := handler.NewRescheduleHandler(rescheduleSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.WithResponseMeta())
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metricsSvc))
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(verifier))

	readers := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleInstituteAdmin, models.RoleStaff)
	planners := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleInstituteAdmin)

	exams := api.Group("/exams")
	exams.GET("", readers, examHandler.List)
	exams.POST("/reschedule", planners, rescheduleHandler.Bulk)
	exams.PUT("/reschedule", planners, rescheduleHandler.Update)
	exams.POST("/reschedule/undo", planners, rescheduleHandler.Undo)
	exams.GET("/:id", readers, examHandler.Get)
	exams.POST("/:id/allocation/preview", planners, examHandler.PreviewAllocation)
	exams.PUT("/:id/schedule", planners, examHandler.SaveSchedule)
	exams.GET("/:id/reschedule", readers, rescheduleHandler.Group)
	exams.GET("/:id/seat-plan", readers,
		internalmiddleware.Audit(auditRepo, logr, models.AuditActionSeatPlanExport, models.AuditResourceExam),
		examHandler.SeatPlan)

	api.GET("/institutes/:id/availability", readers, examHandler.Availability)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
