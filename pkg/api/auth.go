package api

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/apiresponses"
	"github.com/adminsuite/backoffice/pkg/audit"
	"github.com/adminsuite/backoffice/pkg/config"
	"github.com/adminsuite/backoffice/pkg/system"
)

const (
	AuthHeaderKey   = "Authorization"
	RequestIDHeader = "X-Request-Id"
	bearerPrefix    = "Bearer "
)

// AuthHandler verifies bearer tokens and binds the authenticated actor to the
// request context so audit capture can attribute changes.
type AuthHandler struct {
	log    *zap.SugaredLogger
	config config.Auth
	debug  bool

	warnOnce sync.Once
}

func NewAuth(log *zap.SugaredLogger, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		log:    log,
		config: cfg.Auth,
		debug:  cfg.Server.Debug,
	}
}

// Middleware authenticates the request and stores the actor in the request
// context. Every request also gets a correlation ID, generated when the
// client sent none.
func (a *AuthHandler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		if a.config.JWTSecret == "" {
			// Only reachable in debug mode, config validation rejects it
			// otherwise.
			a.warnOnce.Do(func() {
				a.log.Warn("no JWT secret configured, requests run unauthenticated")
			})
			a.bindActor(c, audit.Actor{ID: "dev", Name: "Debug User"}, requestID)
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, bearerPrefix) {
			apiresponses.RespondUnauthorized(c)
			c.Abort()
			return
		}

		actor, err := a.verify(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			a.log.Debugw("token rejected", "request_id", requestID, "error", err)
			apiresponses.RespondUnauthorized(c)
			c.Abort()
			return
		}

		a.bindActor(c, actor, requestID)
		c.Next()
	}
}

func (a *AuthHandler) bindActor(c *gin.Context, actor audit.Actor, requestID string) {
	actor.IPAddress = c.ClientIP()
	c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), actor))
	c.Set("actor", actor)
	system.SetReqLogger(c, system.EnrichReqLogger(a.log, requestID, actor.ID))
}

// verify parses and validates an HMAC-signed token and extracts the actor
// identity from its claims.
func (a *AuthHandler) verify(raw string) (audit.Actor, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return audit.Actor{}, err
	}
	if !token.Valid {
		return audit.Actor{}, fmt.Errorf("token invalid")
	}
	if a.config.Issuer != "" && !claims.VerifyIssuer(a.config.Issuer, true) {
		return audit.Actor{}, fmt.Errorf("unexpected issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return audit.Actor{}, fmt.Errorf("token has no subject")
	}

	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}

	return audit.Actor{ID: sub, Name: name}, nil
}

// ActorFromGin returns the actor bound by the middleware, for handlers that
// need it outside the request context.
func ActorFromGin(c *gin.Context) audit.Actor {
	if v, ok := c.Get("actor"); ok {
		if actor, ok := v.(audit.Actor); ok {
			return actor
		}
	}
	return audit.Actor{ID: audit.SystemActor}
}
