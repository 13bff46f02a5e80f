package main

import (
	"net/http"
	"strconv"
	"time"

	"lppm/pkg/roles"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	ctxUserID = "userID"
	ctxRoles  = "roles"
)

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		token, err := jwt.Parse(authHeader[7:], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sub, err := token.Claims.GetSubject()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}
		c.Set(ctxUserID, uint(id))
		c.Next()
	}
}

// rolesMiddleware resolves the caller's roles once per request. The set is
// also put on the request context so the workflow engine reuses it.
func rolesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		set, err := resolver.Roles(c.Request.Context(), user)
		if err != nil {
			logger.Error("resolve roles", zap.Uint("user_id", user), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not load access rights, please retry"})
			return
		}
		c.Set(ctxRoles, set)
		c.Request = c.Request.WithContext(roles.NewContext(c.Request.Context(), user, set))
		c.Next()
	}
}

func currentUser(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func currentRoles(c *gin.Context) roles.Set {
	if v, ok := c.Get(ctxRoles); ok {
		if s, ok := v.(roles.Set); ok {
			return s
		}
	}
	return 0
}

func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			log.Error("request error", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		log.Info("request", fields...)
	}
}
