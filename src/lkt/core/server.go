package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bitswalk/lkt/src/common/cli"
	"github.com/bitswalk/lkt/src/lkt/api"
	"github.com/bitswalk/lkt/src/lkt/archive"
	"github.com/bitswalk/lkt/src/lkt/db"
	"github.com/bitswalk/lkt/src/lkt/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run history over HTTP",
	Long: `Serves recorded runs, their results and archived logs as a read-only
JSON API. Logs are served decompressed when an archive is configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")

	serveCmd.Flags().Bool("rate-limit", true, "Limit requests per client")

	_ = viper.BindPFlag(cli.KeyServerPort, serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag(cli.KeyServerBind, serveCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag(cli.KeyRateLimit, serveCmd.Flags().Lookup("rate-limit"))

	limits := api.DefaultRateLimitConfig()
	viper.SetDefault(cli.KeyRateLimit, limits.Enabled)
	viper.SetDefault(cli.KeyRateLimitAPI, limits.RequestsPerMin)
	viper.SetDefault(cli.KeyRateLimitLogs, limits.LogRequestsPerMin)
}

// Server holds the HTTP server instance and configuration
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	archive    *archive.Archiver
	limiter    *api.RateLimiter
}

// NewServer creates a new Server instance. archiver may be nil.
func NewServer(database *db.Database, archiver *archive.Archiver) *Server {
	if viper.GetString(cli.KeyLogLevel) == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger())

	limiter := api.NewRateLimiter(api.RateLimitConfig{
		Enabled:           viper.GetBool(cli.KeyRateLimit),
		RequestsPerMin:    viper.GetInt(cli.KeyRateLimitAPI),
		LogRequestsPerMin: viper.GetInt(cli.KeyRateLimitLogs),
	})

	api.SetVersionInfo(VersionInfo)
	api.New(api.Config{
		Runs:        db.NewRunRepository(database),
		Archive:     archiver,
		RateLimiter: limiter,
	}).RegisterRoutes(router)

	return &Server{router: router, archive: archiver, limiter: limiter}
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Run() error {
	defer s.limiter.Stop()

	addr := fmt.Sprintf("%s:%d", viper.GetString(cli.KeyServerBind), viper.GetInt(cli.KeyServerPort))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting lkt server", "address", addr)
		if s.archive != nil {
			log.Info("Log archive enabled", "type", s.archive.Backend.Type(), "location", s.archive.Backend.Location())
		} else {
			log.Warn("Log archive not configured - log endpoints disabled")
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("Received signal, shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}

// ginLogger returns a gin middleware for logging requests
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}

		c.Next()

		if log == nil {
			return
		}
		log.Debug("HTTP request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", path,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// runServer is called by the serve command
func runServer() error {
	log.Info("lkt server starting", "version", VersionInfo.Version)

	database, _, err := openRuns()
	if err != nil {
		return err
	}
	defer database.Close()

	var archiver *archive.Archiver
	if viper.GetBool(cli.KeyArchiveEnabled) {
		backend, err := storage.New(loadStorageConfig())
		if err != nil {
			return err
		}
		if err := backend.Ping(context.Background()); err != nil {
			log.Warn("Log archive is not reachable", "location", backend.Location(), "error", err)
		}
		archiver = &archive.Archiver{Backend: backend}
	}

	return NewServer(database, archiver).Run()
}
