package server

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/gate"
	"github.com/lokera/lokera/internal/requestctx"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"
	contextSessionKey   = "session"
)

// Principal resolves the session cookie to a user and stores both on the
// gin context. Anonymous requests pass through with no principal; an
// invalid or expired cookie is cleared and treated as anonymous.
func (s *Server) Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			c.Next()
			return
		}

		sess, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			if isSessionError(err) {
				s.sessions.Clear(c)
				c.Next()
				return
			}
			AbortWithError(c, err)
			return
		}

		user, err := s.users.FindByID(c.Request.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, authdomain.ErrUserNotFound) {
				s.sessions.Clear(c)
				c.Next()
				return
			}
			AbortWithError(c, err)
			return
		}

		ctx := requestctx.WithActor(c.Request.Context(), "user", user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, user)
		c.Set(contextSessionKey, sess)
		c.Next()
	}
}

// AuthRequired rejects requests that carry no authenticated principal.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c) == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// SuperAdminRequired guards the platform operator API.
func (s *Server) SuperAdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFrom(c)
		if principal == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !principal.IsSuperAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// Gate runs the routing state machine for page requests and either
// redirects or passes through with the organization context headers.
func (s *Server) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := s.machine.Evaluate(c.Request.Context(), gate.Request{
			Host:        c.Request.Host,
			Path:        c.Request.URL.Path,
			Principal:   principalFrom(c),
			ActiveOrgID: activeOrgFrom(c),
		})

		if decision.Outcome == gate.OutcomeRedirect {
			c.Redirect(http.StatusFound, decision.Location)
			c.Abort()
			return
		}
		for key, value := range decision.Headers {
			c.Header(key, value)
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) *authdomain.User {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil
	}
	user, _ := value.(*authdomain.User)
	return user
}

func sessionFrom(c *gin.Context) *authdomain.Session {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*authdomain.Session)
	return sess
}

func activeOrgFrom(c *gin.Context) *snowflake.ID {
	sess := sessionFrom(c)
	if sess == nil || sess.ActiveOrgID == nil {
		return nil
	}
	id := snowflake.ID(*sess.ActiveOrgID)
	return &id
}

func isSessionError(err error) bool {
	return errors.Is(err, authdomain.ErrSessionNotFound) ||
		errors.Is(err, authdomain.ErrSessionExpired) ||
		errors.Is(err, authdomain.ErrSessionRevoked) ||
		errors.Is(err, authdomain.ErrInvalidSession)
}

func clientIP(c *gin.Context) string {
	return c.ClientIP()
}

func logFields(c *gin.Context) []zap.Field {
	return []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", requestctx.RequestIDFromContext(c.Request.Context())),
	}
}
