package api

import (
	"crypto/rsa"
	"net/http"
	"time"

	"github.com/banking/dnfbp-risk/internal/metrics"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouterConfig holds the HTTP surface settings
type RouterConfig struct {
	JWTPublicKey      *rsa.PublicKey // nil disables JWT auth on /risk
	JWTIssuer         string
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	BodyLimit         string
}

// NewRouter builds the echo instance with every route registered
func NewRouter(cfg RouterConfig, riskHandler *RiskHandler, evidenceHandler *EvidenceHandler, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if cfg.RequestsPerSecond > 0 {
		store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RequestsPerSecond),
			Burst:     cfg.Burst,
			ExpiresIn: 3 * time.Minute,
		})
		e.Use(middleware.RateLimiter(store))
	}

	riskGroup := e.Group("/risk")
	if cfg.JWTPublicKey != nil {
		riskGroup.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey:    cfg.JWTPublicKey,
			SigningMethod: "RS256",
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(jwt.RegisteredClaims)
			},
		}))
		if cfg.JWTIssuer != "" {
			riskGroup.Use(requireIssuer(cfg.JWTIssuer))
		}
		logger.Info("JWT Authentication enabled for /risk/*")
	} else {
		logger.Warn("JWT Authentication DISABLED - Missing Public Key (Security Risk)")
	}
	riskHandler.RegisterRoutes(riskGroup)

	evidenceHandler.RegisterRoutes(e.Group("/evidence"))

	// Health Check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	return e
}

// requireIssuer rejects tokens minted by anyone but issuer
func requireIssuer(issuer string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing token"})
			}
			iss, err := token.Claims.GetIssuer()
			if err != nil || iss != issuer {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token issuer"})
			}
			return next(c)
		}
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// the token in /evidence paths is a credential, log the route instead
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("route", c.Path()),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("Request", fields...)
			return nil
		},
	})
}
