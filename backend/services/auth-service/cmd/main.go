package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/learnly/mono-repo/backend/services/auth-service/internal/app"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/config"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/controllers"
	auth_repositories "github.com/learnly/mono-repo/backend/services/auth-service/internal/repositories"
	"github.com/learnly/mono-repo/backend/services/auth-service/internal/services"
	"github.com/learnly/mono-repo/backend/shared/go-middleware"
	"github.com/learnly/mono-repo/backend/shared/go-repositories"
	"github.com/learnly/mono-repo/backend/shared/go-utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	defer cfg.Close()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	//----------------------------------------------------------------------
	// Repositories
	//----------------------------------------------------------------------
	userRepo := repositories.NewUserRepository(application.DB)
	resetRepo := auth_repositories.NewPasswordResetRepository(application.DB)
	rateLimitRepo := auth_repositories.NewRateLimitRepository(application.DB)

	var tokenStore auth_repositories.TokenStore
	switch cfg.TokenStoreBackend {
	case auth_repositories.TokenStoreCache:
		tokenStore = auth_repositories.NewCacheTokenStore(application.Redis, time.Now)
	default:
		tokenStore = auth_repositories.NewIdentityTokenStore(application.DB, userRepo, time.Now)
	}
	utils.Logger.Infof("Token store backend: %s", cfg.TokenStoreBackend)

	//----------------------------------------------------------------------
	// Services
	//----------------------------------------------------------------------
	var blacklistService services.BlacklistService
	if cfg.BlacklistEnabled {
		blacklistService = services.NewBlacklistService(
			auth_repositories.NewBlacklistRepository(application.DB), time.Now,
		)
	}

	tokenSettings := services.TokenSettingsFromConfig(cfg)
	tokenIssuer := services.NewTokenIssuer(tokenSettings, tokenStore, time.Now)
	tokenValidator := services.NewTokenValidator(tokenSettings, userRepo, tokenStore, blacklistService, time.Now)

	rateLimiterService := services.NewRateLimiterService(rateLimitRepo, cfg)
	notifier := services.NewNotificationDispatcher(cfg)
	provisioner := services.NewRoleProfileProvisioner(application.DB)

	authService := services.NewAuthService(
		userRepo,
		resetRepo,
		tokenStore,
		blacklistService,
		tokenIssuer,
		provisioner,
		notifier,
		rateLimiterService,
		cfg,
	)

	tokenCleanupService := services.NewTokenCleanupService(blacklistService, tokenStore, resetRepo, time.Now)
	rateLimitCleanupService := services.NewRateLimitCleanupService(rateLimitRepo, time.Now)

	//----------------------------------------------------------------------
	// Controllers
	//----------------------------------------------------------------------
	authController := controllers.NewAuthController(authService)
	authController.TrustedProxyHops = cfg.TrustedProxyHops
	healthController := controllers.NewHealthController(application.DB, application.Redis)

	//----------------------------------------------------------------------
	// Router & Endpoints
	//----------------------------------------------------------------------
	router := mux.NewRouter()

	router.HandleFunc("/health", healthController.HealthCheckHandler).Methods("GET")

	// /auth/v1
	authRouter := router.PathPrefix("/auth").Subrouter()
	v1Router := authRouter.PathPrefix("/v1").Subrouter()

	v1Router.HandleFunc("/register", authController.RegisterHandler).Methods("POST")
	v1Router.HandleFunc("/login", authController.LoginHandler).Methods("POST")
	v1Router.HandleFunc("/forgot_password", authController.ForgotPasswordHandler).Methods("POST")
	v1Router.HandleFunc("/reset_password", authController.ResetPasswordHandler).Methods("POST")

	// Protected endpoints require a valid token
	protected := v1Router.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(tokenValidator))
	protected.HandleFunc("/refresh_token", authController.RefreshTokenHandler).Methods("POST")
	protected.HandleFunc("/logout", authController.LogoutHandler).Methods("POST")
	protected.HandleFunc("/change_password", authController.ChangePasswordHandler).Methods("POST")
	protected.HandleFunc("/me", authController.MeHandler).Methods("GET")

	//----------------------------------------------------------------------
	// Setup daily cleanup via cron
	//----------------------------------------------------------------------
	c := cron.New()

	// blacklist sweep, stale token prune, spent reset tokens
	_, schErr1 := c.AddFunc("5 3 * * *", func() {
		if e := tokenCleanupService.CleanupDaily(context.Background()); e != nil {
			utils.Logger.WithError(e).Error("Scheduled token cleanup failed")
		}
	})
	if schErr1 != nil {
		utils.Logger.WithError(schErr1).Fatal("Failed to schedule token cleanup job")
	}

	// rate limit counter cleanup
	_, schErr2 := c.AddFunc("10 3 * * *", func() {
		if _, e := rateLimitCleanupService.CleanupDaily(context.Background()); e != nil {
			utils.Logger.WithError(e).Error("Scheduled rate limit counter cleanup failed")
		}
	})
	if schErr2 != nil {
		utils.Logger.WithError(schErr2).Fatal("Failed to schedule rate limit counter cleanup job")
	}

	c.Start()

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("Failed to start server:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	utils.Logger.Infof("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.WithError(err).Error("HTTP server shutdown failed")
	}
	<-c.Stop().Done()
	utils.Logger.Info("Shutdown complete")
}
