package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"classmate/internal/config"
	"classmate/internal/middleware"
	"classmate/internal/repository"
	"classmate/internal/schedule"
	"classmate/internal/service"
	"classmate/internal/util"
	"classmate/internal/websocket"
	"classmate/migrations"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Auth         service.AuthService
	Profile      service.ProfileService
	Course       service.CourseService
	Friendship   service.FriendshipService
	Availability service.AvailabilityService
	Notification service.NotificationService
}

// App owns the process-wide resources behind the router.
type App struct {
	Engine *gin.Engine

	db        *gorm.DB
	redis     *util.RedisClient
	rabbitMQ  *util.RabbitMQClient
	worker    *service.NotificationWorker
	scheduler *Scheduler
	cancel    context.CancelFunc
	logger    *zap.Logger
}

// New connects to the backing services, applies migrations and builds the router.
// Redis and RabbitMQ are optional: without them caching is off and
// notifications are pushed to the websocket hub directly.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.MigrationsOnBoot {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		migrator, err := NewMigrator(sqlDB, migrations.FS, logger)
		if err != nil {
			return nil, err
		}
		if err := migrator.Run(ctx); err != nil {
			return nil, err
		}
	}

	periods, err := schedule.LoadPeriods(cfg.PeriodsFile)
	if err != nil {
		return nil, err
	}

	redisClient := initRedisWithRetry(ctx, cfg, logger)
	store := repository.NewStore(db, repository.NewRedisCache(redisClient, logger), logger)

	runCtx, cancel := context.WithCancel(context.Background())
	wsHub := websocket.NewHub(logger)
	wsHub.SetFriendLookup(store.Friendships().FriendIDs)
	go wsHub.Run(runCtx)

	rabbitMQ := initRabbitMQWithRetry(ctx, cfg, logger)
	var worker *service.NotificationWorker
	var publisher service.Publisher
	if rabbitMQ != nil {
		worker = service.NewNotificationWorker(rabbitMQ, wsHub, logger)
		if err := worker.Start(); err != nil {
			logger.Warn("notification worker not started, pushing directly", zap.Error(err))
			worker = nil
		} else {
			publisher = rabbitMQ
		}
	}

	notificationService := service.NewNotificationService(store.Notifications(), publisher, logger)
	notificationService.SetBroadcaster(wsHub)

	svc := Services{
		Auth:    service.NewAuthService(store.Users(), store.Profiles(), store, cfg.JWTSecret, cfg.JWTExpiry(), logger),
		Profile: service.NewProfileService(store.Profiles(), logger),
		Course: service.NewCourseService(
			store.Courses(), store.Friendships(), periods,
			service.ParseCourseVisibility(cfg.CourseVisibility), cfg.Location(), logger,
		),
		Friendship: service.NewFriendshipService(
			store.Friendships(), store.FriendRequests(), store.Profiles(), store,
			notificationService, service.ParseResendPolicy(cfg.FriendRequestResendPolicy), logger,
		),
		Availability: service.NewAvailabilityService(store.Friendships(), store.Courses(), store.Profiles(), periods, logger),
		Notification: notificationService,
	}

	engine, err := NewRouter(cfg, logger, svc, wsHub)
	if err != nil {
		cancel()
		return nil, err
	}

	var scheduler *Scheduler
	if cfg.MaintenanceCron != "" {
		scheduler, err = NewScheduler(cfg.MaintenanceCron, cfg.Location(), notificationService, cfg.NotificationRetention(), logger)
		if err != nil {
			cancel()
			return nil, err
		}
		scheduler.Start()
	}

	return &App{
		Engine:    engine,
		db:        db,
		redis:     redisClient,
		rabbitMQ:  rabbitMQ,
		worker:    worker,
		scheduler: scheduler,
		cancel:    cancel,
		logger:    logger,
	}, nil
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	a.cancel()
	if a.rabbitMQ != nil {
		if err := a.rabbitMQ.Close(); err != nil {
			a.logger.Warn("close rabbitmq", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// NewRouter registers middleware and routes. hub may be nil, which disables /ws.
func NewRouter(cfg *config.Config, logger *zap.Logger, svc Services, hub *websocket.Hub) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(corsMiddleware(cfg.ClientURL))

	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		logger.Info("rate limiting enabled", zap.Int("rps", cfg.RateLimitRPS), zap.Int("burst", cfg.RateLimitBurst))
	}

	authHandler := NewAuthHandler(svc.Auth, cfg.JWTSecret)
	profileHandler := NewProfileHandler(svc.Profile)
	courseHandler := NewCourseHandler(svc.Course)
	friendshipHandler := NewFriendshipHandler(svc.Friendship, svc.Availability)
	notificationHandler := NewNotificationHandler(svc.Notification)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)

			auth.POST("/logout", authHandler.AuthMiddleware(), authHandler.Logout)
			auth.GET("/me", authHandler.AuthMiddleware(), authHandler.GetMe)
		}

		api.GET("/periods", courseHandler.GetPeriods)

		profiles := api.Group("/profiles")
		profiles.Use(authHandler.AuthMiddleware())
		{
			profiles.GET("/me", profileHandler.GetMyProfile)
			profiles.PUT("/me", profileHandler.UpdateMyProfile)
			profiles.GET("/search", profileHandler.SearchByFriendCode)
		}

		users := api.Group("/users")
		users.Use(authHandler.AuthMiddleware())
		{
			users.GET("/:id/profile", profileHandler.GetPublicProfile)
			users.GET("/:id/courses", courseHandler.GetUserCourses)
		}

		courses := api.Group("/courses")
		courses.Use(authHandler.AuthMiddleware())
		{
			courses.GET("", courseHandler.GetMyCourses)
			courses.POST("", courseHandler.CreateCourse)
			courses.POST("/conflicts", courseHandler.PreviewConflicts)
			courses.GET("/export.ics", courseHandler.ExportCalendar)
			courses.PUT("/:id", courseHandler.UpdateCourse)
			courses.DELETE("/:id", courseHandler.DeleteCourse)
		}

		friends := api.Group("/friends")
		friends.Use(authHandler.AuthMiddleware())
		{
			friends.GET("", friendshipHandler.GetFriends)
			friends.GET("/available", friendshipHandler.GetAvailableFriends)
			friends.POST("/requests", friendshipHandler.SendFriendRequest)
			friends.GET("/requests", friendshipHandler.GetIncomingRequests)
			friends.POST("/requests/:id/accept", friendshipHandler.AcceptFriendRequest)
			friends.POST("/requests/:id/reject", friendshipHandler.RejectFriendRequest)
			friends.DELETE("/:friendId", friendshipHandler.RemoveFriend)
		}

		notifications := api.Group("/notifications")
		notifications.Use(authHandler.AuthMiddleware())
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.GET("/unread/count", notificationHandler.GetUnreadCount)
			notifications.PUT("/:id/read", notificationHandler.MarkAsRead)
			notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
		}
	}

	if hub != nil {
		wsHandler := websocket.ServeWS(hub, cfg.JWTSecret, websocket.NewUpgrader(allowedOrigins(cfg.ClientURL)))
		r.GET("/ws", gin.WrapF(wsHandler))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r, nil
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.IsProduction() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}
	return gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
}

// backoff doubles from 2s up to 30s.
func backoff(attempt int) time.Duration {
	delay := 2 * time.Second * time.Duration(1<<uint(attempt-1))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return delay
}

const maxConnectAttempts = 10

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(ctx context.Context, cfg *config.Config, logger *zap.Logger) *util.RabbitMQClient {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, notifications will be pushed directly")
		return nil
	}

	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		rabbitMQ, err := util.NewRabbitMQClient(cfg)
		if err == nil {
			logger.Info("rabbitmq connected", zap.Int("attempt", attempt))
			return rabbitMQ
		}

		if attempt == maxConnectAttempts {
			logger.Warn("rabbitmq unavailable, notifications will be pushed directly", zap.Error(err))
			break
		}

		delay := backoff(attempt)
		logger.Warn("rabbitmq connect failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	return nil
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(ctx context.Context, cfg *config.Config, logger *zap.Logger) *util.RedisClient {
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		redisClient, err := util.NewRedisClient(cfg)
		if err == nil {
			logger.Info("redis connected", zap.Int("attempt", attempt))
			return redisClient
		}

		if attempt == maxConnectAttempts {
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
			break
		}

		delay := backoff(attempt)
		logger.Warn("redis connect failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}

	return nil
}

func allowedOrigins(clientURL string) []string {
	origins := []string{"http://localhost:3000"}
	if clientURL != "" && clientURL != origins[0] {
		origins = append(origins, clientURL)
	}
	return origins
}

func corsMiddleware(clientURL string) gin.HandlerFunc {
	allowed := allowedOrigins(clientURL)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowOrigin := clientURL
		for _, o := range allowed {
			if origin == o {
				allowOrigin = origin
				break
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
