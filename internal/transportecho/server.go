// Package transportecho is the thin HTTP framing shell around the
// mediation core: route binding, advisory response headers, health
// checks, and the handful of Echo middlewares the reference stack always
// wires up (request id, CORS, rate limiting, recover, security headers,
// API key auth). None of this participates in the mediator's
// correctness — it exists so the service is runnable.
package transportecho

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/kestrel-labs/workspacegraph/internal/csrftoken"
	wgerrors "github.com/kestrel-labs/workspacegraph/internal/errors"
	"github.com/kestrel-labs/workspacegraph/internal/logging"
)

// ServerConfig controls the outer HTTP shell.
type ServerConfig struct {
	Host            string
	Port            int
	APIKey          string
	ShutdownTimeout time.Duration
	RateLimit       float64
	CORSOrigins     []string
}

// NewEchoServer wires the standard middleware stack: request id, panic
// recovery, CORS, rate limiting, security headers, JSON content type,
// optional API key auth, and a JSON error handler that understands the
// mediator's typed error taxonomy and logs unhandled errors. No per-request
// access-log middleware is registered. csrf is
// optional (nil disables CSRF enforcement entirely) — it is the ancillary
// collaborator from §5, not part of the mediation core.
func NewEchoServer(cfg ServerConfig, logger *logging.ContextLogger, csrf *csrftoken.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	}))
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
		}))
	}
	e.Use(SecurityHeadersMiddleware)
	e.Use(JSONContentTypeMiddleware)
	if cfg.APIKey != "" {
		e.Use(APIKeyMiddleware(cfg.APIKey))
	}
	if csrf != nil {
		e.Use(CSRFMiddleware(csrf))
		e.GET("/csrf-token", IssueCSRFTokenHandler(csrf))
	}

	e.HTTPErrorHandler = CustomHTTPErrorHandler(logger)
	e.GET("/healthz", HealthCheckHandler)

	return e
}

// IssueCSRFTokenHandler mints a fresh token for the session id in the
// caller's X-Session-ID header (falling back to a generated session id on
// first visit) and returns both so the client can echo them back on
// mutating requests.
func IssueCSRFTokenHandler(store *csrftoken.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Request().Header.Get("X-Session-ID")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		token := uuid.NewString()
		store.Issue(sessionID, token)
		return c.JSON(http.StatusOK, map[string]string{"sessionId": sessionID, "csrfToken": token})
	}
}

// CSRFMiddleware rejects mutating requests (POST/PATCH/PUT/DELETE) that
// don't carry a session id whose issued token matches X-CSRF-Token.
func CSRFMiddleware(store *csrftoken.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
				sessionID := c.Request().Header.Get("X-Session-ID")
				token := c.Request().Header.Get("X-CSRF-Token")
				if sessionID == "" || token == "" || !store.Validate(sessionID, token) {
					return echo.NewHTTPError(http.StatusForbidden, "missing or invalid CSRF token")
				}
			}
			return next(c)
		}
	}
}

// SecurityHeadersMiddleware adds a conservative set of response headers.
func SecurityHeadersMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		c.Response().Header().Set("X-Frame-Options", "DENY")
		return next(c)
	}
}

// JSONContentTypeMiddleware ensures every response is labeled as JSON.
func JSONContentTypeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
		return next(c)
	}
}

// APIKeyMiddleware rejects requests whose X-API-Key header does not match
// the configured key.
func APIKeyMiddleware(validKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-API-Key") != validKey {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}
			return next(c)
		}
	}
}

// HealthCheckHandler reports liveness.
func HealthCheckHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// CustomHTTPErrorHandler renders the mediator's typed errors with their
// declared HTTP status and machine-readable code; anything else falls back
// to Echo's default rendering.
func CustomHTTPErrorHandler(logger *logging.ContextLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var wgErr *wgerrors.Error
		if wgerrors.As(err, &wgErr) {
			_ = c.JSON(wgErr.HTTPStatus(), map[string]interface{}{
				"code":    wgErr.Code,
				"message": wgErr.Message,
				"details": wgErr.Details,
			})
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, map[string]interface{}{"message": he.Message})
			return
		}

		logger.WithError(err).Error("unhandled request error")
		_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": "internal error"})
	}
}

// GracefulShutdown stops accepting new connections and waits up to
// timeout for in-flight requests to finish.
func GracefulShutdown(ctx context.Context, e *echo.Echo, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
