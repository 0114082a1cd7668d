package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/authcore/internal/audit"
	"github.com/streamspace/authcore/internal/authsvc"
	"github.com/streamspace/authcore/internal/cache"
	"github.com/streamspace/authcore/internal/config"
	"github.com/streamspace/authcore/internal/db"
	"github.com/streamspace/authcore/internal/httpapi"
	"github.com/streamspace/authcore/internal/keys"
	"github.com/streamspace/authcore/internal/lockout"
	"github.com/streamspace/authcore/internal/logger"
	"github.com/streamspace/authcore/internal/middleware"
	"github.com/streamspace/authcore/internal/ratelimit"
	"github.com/streamspace/authcore/internal/refresh"
	"github.com/streamspace/authcore/internal/reqctx"
	"github.com/streamspace/authcore/internal/secrets"
	"github.com/streamspace/authcore/internal/tokens"
)

func main() {
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	log.Info().Msg("starting authcore server")

	database, err := db.NewDatabase(db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	log.Info().Msg("running database migrations")
	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	secretsProvider := secrets.NewEnvProvider()
	keyProvider, err := keys.New(secretsProvider, "JWT_SECRET", cfg.JWTRotationGracePeriod)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize signing key provider")
	}

	tokenSvc := tokens.New(keyProvider, "authcore", cfg.JWTExpiration)

	userStore := db.NewUserStore(database.DB())
	tenantStore := db.NewTenantStore(database.DB())
	refreshStore := db.NewRefreshTokenStore(database.DB())
	auditStore := db.NewAuditStore(database.DB())

	auditJournal := audit.New(auditStore, cfg.AuditQueueSize, cfg.AuditWorkers)
	auditCtx, cancelAudit := context.WithCancel(context.Background())
	defer cancelAudit()
	auditJournal.Start(auditCtx)
	defer auditJournal.Stop()

	refreshSvc := refresh.New(refreshStore, auditJournal, refresh.DefaultTTL)
	lockoutTiers := []lockout.Tier{
		{Attempts: cfg.LockoutMaxAttempts, Duration: time.Duration(cfg.LockoutDurationMinutes) * time.Minute},
		{Attempts: cfg.LockoutMaxAttempts * 2, Duration: time.Duration(cfg.LockoutDurationMinutes*cfg.LockoutProgressiveFactor) * time.Minute},
		{Attempts: cfg.LockoutMaxAttempts * 3, Duration: 24 * time.Hour},
	}
	lockoutSvc := lockout.New(userStore, auditJournal, lockoutTiers)

	authSvc := authsvc.New(userStore, tenantStore, tokenSvc, refreshSvc, lockoutSvc, auditJournal, cfg.JWTExpiration)

	limiter := ratelimit.New(30 * time.Minute)

	bearerAuth := httpapi.BearerAuth(tokenSvc, activeUserChecker{users: userStore})
	requireAdmin := httpapi.RequireAdmin()

	handler := httpapi.New(authSvc, userStore, lockoutSvc, auditJournal, keyProvider, limiter, httpapi.RateLimitConfig{
		LoginCapacity:    cfg.RateLimitLoginCapacity,
		LoginPeriod:      cfg.RateLimitLoginPeriod,
		RegisterCapacity: cfg.RateLimitRegisterCapacity,
		RegisterPeriod:   cfg.RateLimitRegisterPeriod,
	})

	responseCache, err := cache.NewCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		Enabled:  cfg.CacheEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize response cache")
	}
	defer responseCache.Close()
	userListCache := cache.CacheMiddleware(responseCache, time.Minute, func(c *gin.Context) string {
		principal, _ := reqctx.FromContext(c)
		return cache.UserListKey(principal.TenantID)
	})
	auditLogCache := cache.CacheMiddleware(responseCache, time.Minute, func(c *gin.Context) string {
		principal, _ := reqctx.FromContext(c)
		return cache.AuditLogListKey(principal.TenantID)
	})

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(gin.Recovery())
	router.Use(middleware.StructuredLoggerWithConfigFunc(middleware.DefaultStructuredLoggerConfig()))
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.AllowedHTTPMethods())
	router.Use(corsMiddleware(cfg.CORSAllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	inputValidator := middleware.NewInputValidator()
	router.Use(inputValidator.Middleware())
	router.Use(inputValidator.SanitizeJSONMiddleware())
	router.Use(middleware.RequestSizeLimiter(1024 * 1024))
	router.Use(middleware.GzipWithExclusions(middleware.BestSpeed, []string{"/api/auth/"}))

	handler.Register(router, bearerAuth, requireAdmin, userListCache, auditLogCache)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go runPeriodic(sweepCtx, time.Hour, func() {
		keyProvider.Sweep()
	})
	go runPeriodic(sweepCtx, time.Hour, func() {
		if _, err := refreshStore.CleanupExpired(sweepCtx, time.Now()); err != nil {
			log.Error().Err(err).Msg("refresh token cleanup failed")
		}
		if _, err := refreshStore.CleanupOldRevoked(sweepCtx, time.Now().Add(-30*24*time.Hour)); err != nil {
			log.Error().Err(err).Msg("revoked refresh token cleanup failed")
		}
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("port", cfg.APIPort).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}

// activeUserChecker adapts db.UserStore to httpapi's narrow account-active
// lookup, re-verifying on every request that the account is still enabled
// rather than trusting a token's claims for its full lifetime.
type activeUserChecker struct {
	users *db.UserStore
}

func (c activeUserChecker) IsActive(userID string) (bool, error) {
	user, err := c.users.GetByID(context.Background(), userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return user.Active, nil
}

func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
				break
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
