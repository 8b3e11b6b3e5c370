package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syncBoard/configs"
	"syncBoard/internal/handlers"
	"syncBoard/internal/metrics"
)

type HttpServer struct {
	config             *configs.Config
	router             *gin.Engine
	restHandler        *handlers.RestHandler
	socketBoardHandler *handlers.SocketBoardHandler
	rateLimiter        *handlers.RateLimiter
}

func NewHttpServer(
	config *configs.Config,
	restHandler *handlers.RestHandler,
	socketBoardHandler *handlers.SocketBoardHandler,
) *HttpServer {
	hs := &HttpServer{
		config:             config,
		restHandler:        restHandler,
		socketBoardHandler: socketBoardHandler,
		rateLimiter: handlers.NewRateLimiter(
			config.Viper.GetFloat64("server.rate_limit"),
			config.Viper.GetInt("server.rate_burst"),
		),
	}
	hs.initializeGin()
	hs.setupRestfulRoutes()
	hs.setupWebSocketRoutes()
	return hs
}

// Handler is the router wrapped with CORS.
func (hs *HttpServer) Handler() http.Handler {
	cors := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(hs.config.Viper.GetStringSlice("server.allowed_origins")),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorillaHandlers.AllowCredentials(),
	)
	return cors(hs.router)
}

// Run serves until ctx is done, then shuts down gracefully.
func (hs *HttpServer) Run(ctx context.Context) error {
	go hs.rateLimiter.CleanupVisitors(ctx)

	addr := hs.config.Viper.GetString("server.addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           hs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("HTTP server started on", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	timeout := hs.config.Viper.GetDuration("server.shutdown_timeout")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("Server exiting")
	return nil
}

func (hs *HttpServer) initializeGin() {
	metrics.InitPrometheus()
	hs.router = gin.Default()
	hs.router.Use(handlers.MonitorMiddleware())
}

func (hs *HttpServer) setupRestfulRoutes() {
	hs.router.GET("/health", hs.restHandler.Health)
	hs.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := hs.router.Group("/", hs.rateLimiter.Middleware())
	public.POST("/login", hs.restHandler.Login)
	public.POST("/register", hs.restHandler.Register)

	api := hs.router.Group("/api", hs.rateLimiter.Middleware(), hs.restHandler.MustAuthenticateMiddleware())
	api.GET("/dashboard", hs.restHandler.Dashboard)
	api.POST("/boards", hs.restHandler.CreateBoard)
	api.GET("/boards/:id", hs.restHandler.GetBoard)
	api.PUT("/boards/:id", hs.restHandler.SaveBoard)
	api.DELETE("/boards/:id", hs.restHandler.DeleteBoard)
	api.POST("/boards/:id/join", hs.restHandler.JoinBoard)
	api.GET("/boards/:id/chat", hs.restHandler.ChatHistory)
}

func (hs *HttpServer) setupWebSocketRoutes() {
	hs.router.GET("/ws/board", hs.socketBoardHandler.HandleSocketBoardRoute)
}
