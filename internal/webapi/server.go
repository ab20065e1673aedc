package webapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/parking/internal/accounts"
	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

// Dependencies are the services the HTTP API drives.
type Dependencies struct {
	Occupancy *occupancy.Service
	Accounts  *accounts.Service
	Logger    *zap.Logger
}

// Run serves the HTTP API until ctx is cancelled.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	handler, validator, err := newHandler(cfg, deps)
	if err != nil {
		return err
	}
	router := setupRouter(cfg, handler, validator)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		handler.logger.Info("parkingd listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			handler.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newHandler(cfg Config, deps Dependencies) (*httpHandler, *sessionvalidator.Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if deps.Occupancy == nil || deps.Accounts == nil {
		return nil, nil, errors.New("occupancy and accounts services are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("session validator: %w", err)
	}
	handler := &httpHandler{
		logger:    logger,
		occupancy: deps.Occupancy,
		accounts:  deps.Accounts,
		cfg:       cfg,
	}
	return handler, validator, nil
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/auth/register", handler.handleRegister)
	router.POST("/api/auth/login", handler.handleLogin)

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(claimsContextKey), handler.requirePrincipal)

	api.GET("/session", handler.handleSession)
	api.POST("/auth/logout", handler.handleLogout)
	api.GET("/lots", handler.handleListLots)
	api.GET("/lots/:lot_id", handler.handleGetLot)
	api.GET("/lots/:lot_id/spots", handler.handleListSpots)
	api.POST("/lots/:lot_id/bookings", handler.handleBookLot)
	api.POST("/bookings/release", handler.handleReleaseLot)
	api.POST("/spots/:spot_id/reservations", handler.handleReserveSpot)
	api.POST("/spots/:spot_id/park", handler.handleConfirmParking)
	api.POST("/spots/:spot_id/release", handler.handleReleaseSpot)
	api.GET("/history", handler.handleHistory)

	admin := api.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.POST("/lots", handler.handleCreateLot)
	admin.PUT("/lots/:lot_id", handler.handleUpdateLot)
	admin.DELETE("/lots/:lot_id", handler.handleDeleteLot)
	admin.GET("/lots/search", handler.handleSearchLots)
	admin.DELETE("/spots/:spot_id", handler.handleDeleteSpot)
	admin.GET("/summary", handler.handleSummary)
	admin.GET("/users", handler.handleListUsers)
	admin.POST("/users/:user_id/promote", handler.handlePromoteUser)
	admin.POST("/admins", handler.handleCreateAdmin)

	return router
}

type httpHandler struct {
	logger    *zap.Logger
	occupancy *occupancy.Service
	accounts  *accounts.Service
	cfg       Config
}

// requirePrincipal resolves validated claims into a live session principal.
func (handler *httpHandler) requirePrincipal(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return
	}
	principal, err := handler.accounts.Authenticate(ctx.Request.Context(), claims)
	if err != nil {
		handler.abortWithError(ctx, err)
		return
	}
	ctx.Request = ctx.Request.WithContext(occupancy.WithPrincipal(ctx.Request.Context(), principal))
	ctx.Next()
}

func (handler *httpHandler) requireAdmin(ctx *gin.Context) {
	principal, ok := occupancy.PrincipalFromContext(ctx.Request.Context())
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errorCodeUnauthorized, "missing session"))
		return
	}
	if err := occupancy.RequireAdmin(principal); err != nil {
		handler.abortWithError(ctx, err)
		return
	}
	ctx.Next()
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func principalFrom(ctx *gin.Context) occupancy.Principal {
	principal, _ := occupancy.PrincipalFromContext(ctx.Request.Context())
	return principal
}
