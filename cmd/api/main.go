package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/razi112/fynzatyp/internal/config"
	"github.com/razi112/fynzatyp/internal/handler"
	"github.com/razi112/fynzatyp/internal/middleware"
	"github.com/razi112/fynzatyp/internal/pubsub"
	pgRepo "github.com/razi112/fynzatyp/internal/repository/postgres"
	redisRepo "github.com/razi112/fynzatyp/internal/repository/redis"
	"github.com/razi112/fynzatyp/internal/service"
	"github.com/razi112/fynzatyp/internal/service/racemanager"
	ws "github.com/razi112/fynzatyp/internal/websocket"
	"github.com/razi112/fynzatyp/pkg/auth"
	"github.com/razi112/fynzatyp/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	raceRepo := pgRepo.NewRaceRepo(db)
	participantRepo := pgRepo.NewParticipantRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Провайдер ленты изменений гонок. Без Redis Pub/Sub события
	// разлетаются только внутри одного экземпляра.
	var pubSubProvider pubsub.Provider
	if cfg.Redis.PubSubEnabled {
		redisProvider, errProv := pubsub.NewRedisPubSub(redisClient)
		if errProv != nil {
			log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Используется локальная доставка.", errProv)
			pubSubProvider = pubsub.NewLocalPubSub()
		} else {
			log.Println("Redis PubSub провайдер успешно инициализирован")
			pubSubProvider = redisProvider
		}
	} else {
		pubSubProvider = pubsub.NewLocalPubSub()
	}

	// Инициализируем JWT
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	// Конфигурация движка гонок
	raceConfig := racemanager.DefaultConfig()
	if cfg.Race.CountdownSeconds > 0 {
		raceConfig.CountdownSeconds = cfg.Race.CountdownSeconds
	}
	if cfg.Race.MinPlayers > 0 {
		raceConfig.MinPlayers = cfg.Race.MinPlayers
	}
	if cfg.Race.DefaultMaxPlayers > 0 {
		raceConfig.DefaultMaxPlayers = cfg.Race.DefaultMaxPlayers
	}
	if cfg.Race.JoinCodeLength > 0 {
		raceConfig.JoinCodeLength = cfg.Race.JoinCodeLength
	}
	if cfg.Race.MaxRaceDurationMin > 0 {
		raceConfig.MaxRaceDuration = time.Duration(cfg.Race.MaxRaceDurationMin) * time.Minute
	}

	clock := clockwork.NewRealClock()

	// Инициализируем сервисы
	raceStore := service.NewPersistentRaceStore(raceRepo, participantRepo, pubSubProvider)
	raceService := service.NewRaceService(raceStore, raceRepo, clock, raceConfig)
	sessionService := service.NewSessionService(sessionRepo, clock)
	statsService := service.NewStatsService(sessionRepo, cacheRepo, clock)

	var inviteService service.InviteService
	if cfg.Email.ResendAPIKey != "" {
		inviteService, err = service.NewResendInviteService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize ResendInviteService: %v", err)
			os.Exit(1)
		}
		log.Println("Resend invite service initialized")
	} else {
		log.Println("Resend API key not set, email invites disabled")
		inviteService = &service.NoopInviteService{}
	}

	// Инициализируем WebSocket
	hub := ws.NewHub()
	go hub.Run()
	wsManager := ws.NewManager(hub)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(jwtService)
	raceHandler := handler.NewRaceHandler(raceService, inviteService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	statsHandler := handler.NewStatsHandler(statsService)
	wsHandler := handler.NewWSHandler(hub, wsManager, raceService, sessionService)

	// Настраиваем маршрутизатор
	router := gin.Default()

	if gin.Mode() == gin.ReleaseMode {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Гостевая идентификация
		api.POST("/auth/guest", authHandler.Guest)

		// Гонки
		races := api.Group("/races")
		races.Use(authMiddleware.RequireAuth())
		{
			races.POST("", raceHandler.CreateRace)
			races.POST("/join", raceHandler.JoinRace)
			races.POST("/start", raceHandler.StartRace)
			races.POST("/leave", raceHandler.LeaveRace)
			races.POST("/invite", raceHandler.Invite)
			races.GET("/current", raceHandler.GetCurrentRace)
			races.GET("", raceHandler.ListRaces)
			races.GET("/:id", raceHandler.GetRace)
		}

		// Одиночные тренировки
		sessions := api.Group("/sessions")
		sessions.Use(authMiddleware.RequireAuth())
		{
			sessions.POST("", sessionHandler.StartSession)
			sessions.POST("/:id/input", sessionHandler.ApplyInput)
			sessions.GET("/:id/result", sessionHandler.GetResult)
			sessions.DELETE("/:id", sessionHandler.Abandon)
			sessions.GET("/history", sessionHandler.History)
		}

		// Статистика
		stats := api.Group("/stats")
		{
			// Таблица лидеров публична
			stats.GET("/leaderboard", statsHandler.Leaderboard)

			authedStats := stats.Group("")
			authedStats.Use(authMiddleware.RequireAuth())
			{
				authedStats.GET("/overview", statsHandler.Overview)
				authedStats.GET("/export", statsHandler.ExportHistory)
			}
		}
	}

	// WebSocket маршрут. Токен передается query-параметром.
	router.GET("/ws", authMiddleware.RequireAuth(), wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	readTimeout := cfg.Server.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15
	}
	writeTimeout := cfg.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 15
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем хаб и провайдер ленты
	hub.Stop()
	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
