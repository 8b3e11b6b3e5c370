package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"syncBoard/configs"
	"syncBoard/internal/broker"
	"syncBoard/internal/enums"
	"syncBoard/internal/handlers"
	"syncBoard/internal/relay"
	"syncBoard/internal/repositories"
	"syncBoard/internal/servers/database"
	"syncBoard/internal/servers/http"
	"syncBoard/internal/services"
)

var (
	app  *App
	once sync.Once
)

type App struct {
	redis   *redis.Client
	ctx     context.Context
	configs *configs.Config
}

func GetApp() *App {
	once.Do(func() {
		app = &App{}
	})
	return app
}

func (app *App) LetsGo() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	app.ctx = ctx
	app.initializeConfigs()

	db := database.GetDB(app.configs)
	authRepo := repositories.NewAuthenticationRepository(db)
	authService := services.NewAuthenticationService(authRepo, app.configs)
	chatRepo := repositories.NewChatRepository(db)
	chatService := services.NewChatService(chatRepo)
	boardRepo := repositories.NewBoardRepository(db)
	boardService := services.NewBoardService(boardRepo, chatService)

	options := RelayOptions(app.configs)
	options.Store = boardService
	if app.configs.Viper.GetBool("minio.enabled") {
		minioService, err := services.NewMinioService(app.ctx, app.configs)
		if err != nil {
			log.Printf("LetsGo - snapshot archive disabled: %v", err)
		} else {
			options.Archiver = minioService
		}
	}
	if app.configs.Viper.GetString("relay.broker") == enums.RELAY_BROKER_REDIS {
		app.initializeRedis()
		redisBroker := broker.NewRedisBroker(
			app.redis,
			enums.REDIS_CHANNEL_RELAY,
			instanceID(app.configs),
			app.configs.Viper.GetInt("relay.send_buffer"),
		)
		go redisBroker.Run(app.ctx)
		options.Broker = redisBroker
		options.Ledger = broker.NewRedisLedger(app.redis)
	}

	hub := relay.NewHub(options)
	go hub.Run(app.ctx)

	restHandler := handlers.NewRestHandler(authService, boardService, hub)
	socketBoardHandler := handlers.NewSocketBoardHandler(
		hub,
		authService,
		app.configs.Viper.GetStringSlice("server.allowed_origins"),
	)

	err := http.NewHttpServer(app.configs, restHandler, socketBoardHandler).Run(app.ctx)
	stop()
	<-hub.Stopped()
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if err != nil {
		log.Printf("LetsGo - server stopped: %v", err)
		os.Exit(1)
	}
}

// RelayOptions reads the relay tuning from config.
func RelayOptions(config *configs.Config) relay.Options {
	return relay.Options{
		SendBuffer:       config.Viper.GetInt("relay.send_buffer"),
		RateLimit:        config.Viper.GetFloat64("relay.rate_limit"),
		RateBurst:        config.Viper.GetInt("relay.rate_burst"),
		ChatHistoryLimit: config.Viper.GetInt("relay.chat_history_limit"),
		JobTimeout:       config.Viper.GetDuration("relay.job_timeout"),
		JobQueue:         config.Viper.GetInt("relay.job_queue"),
	}
}

func instanceID(config *configs.Config) string {
	if id := config.Viper.GetString("relay.instance_id"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}

func (app *App) initializeRedis() {
	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.configs.Viper.GetString("redis.addr"),
		Password: app.configs.Viper.GetString("redis.password"),
		DB:       app.configs.Viper.GetInt("redis.db"),
	})
}

func (app *App) initializeConfigs() {
	app.configs = configs.GetConfig()
}
