package server

import (
	"net/http"
	"strconv"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	errs "github.com/techagentng/quizchat/errors"
	"github.com/techagentng/quizchat/metrics"
	"github.com/techagentng/quizchat/server/response"
	"github.com/techagentng/quizchat/services/jwt"
)

const userIDKey = "userID"

// Authorize requires a valid bearer token and stores its subject under
// userIDKey. Handlers then refuse requests acting for someone else.
func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			// browsers cannot set headers on websocket upgrades
			accessToken = c.Query("access_token")
		}
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}

		claims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.ErrUnauthorized)
			return
		}
		userID, err := jwt.UserID(claims)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("invalid token subject", http.StatusUnauthorized))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func authenticatedUser(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, _ := v.(string)
	return id, id != ""
}

// actorID resolves who is acting. With auth enabled the token subject wins
// and a different claimed id is refused; without it the claimed id is used.
func actorID(c *gin.Context, claimed, field string) (string, *errs.Error) {
	if tokenUser, ok := authenticatedUser(c); ok {
		if claimed != "" && claimed != tokenUser {
			return "", errs.Forbidden("", field+" does not match the authenticated user")
		}
		return tokenUser, nil
	}
	if claimed == "" {
		return "", errs.Validation(field + " is required")
	}
	return claimed, nil
}

// optionalActor resolves the acting user for endpoints that may be called
// anonymously when auth is disabled. An empty id skips ownership checks.
func optionalActor(c *gin.Context, claimed string) (string, *errs.Error) {
	if _, ok := authenticatedUser(c); ok || claimed != "" {
		return actorID(c, claimed, "userId")
	}
	return "", nil
}

func (s *Server) limitSendMessage() gin.HandlerFunc {
	return ratelimit.RateLimiter(s.RateLimitStore, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			metrics.RateLimitHits.WithLabelValues("send_message").Inc()
			errs.ErrorHandler(c, info)
		},
		KeyFunc: senderKey,
	})
}

// senderKey buckets SendMessage calls per acting user, falling back to the
// client address.
func senderKey(c *gin.Context) string {
	if id, ok := authenticatedUser(c); ok {
		return "user:" + id
	}
	if id := c.Query("userId"); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

// respondAndAbort calls response.JSON and aborts the Context
func respondAndAbort(c *gin.Context, message string, status int, data interface{}, e *errs.Error) {
	response.JSON(c, message, status, data, e)
	c.Abort()
}

// getTokenFromHeader returns the token string in the authorization header
func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("remote_addr", c.ClientIP()).
			Msg("request completed")
	}
}

func collectMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}
