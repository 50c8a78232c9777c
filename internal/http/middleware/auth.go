package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/http/response"
	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

const (
	headerOwnerID   = "X-Owner-Id"
	headerSessionID = "X-Session-Id"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth attaches the caller's owner and session to the request context. With a
// signing key configured the caller must present a bearer token; without one the owner
// is taken from the X-Owner-Id header.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if am.authService != nil && am.authService.Enabled() {
			tokenString := extractTokenFromAll(c)
			if tokenString == "" {
				abortUnauthorized(c, "missing or invalid token")
				return
			}
			next, err := am.authService.SetContextFromToken(ctx, tokenString)
			if err != nil {
				am.log.Debug("token rejected", "error", err)
				abortUnauthorized(c, "invalid or expired token")
				return
			}
			ctx = next
		} else {
			owner, err := uuid.Parse(strings.TrimSpace(firstNonEmpty(c.GetHeader(headerOwnerID), c.Query("owner_id"))))
			if err != nil {
				abortUnauthorized(c, "missing or invalid X-Owner-Id")
				return
			}
			ctx = ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
				OwnerID:   owner,
				SessionID: strings.TrimSpace(c.GetHeader(headerSessionID)),
			})
		}
		rd := ctxutil.GetRequestData(ctx)
		if rd == nil || rd.OwnerID == uuid.Nil {
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("no owner for request"))
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New(msg))
}

// EventSource cannot set headers, so the stream endpoint passes the token as ?token=.
func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
