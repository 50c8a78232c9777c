package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
	"github.com/yungbote/chartmotion-backend/internal/services"
)

func whoami(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService(logger.Nop(), secret, "")
	r := gin.New()
	r.Use(NewAuthMiddleware(logger.Nop(), auth).RequireAuth())
	r.GET("/whoami", func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"owner": rd.OwnerID.String(), "session": rd.SessionID})
	})
	return r
}

func TestRequireAuthBearer(t *testing.T) {
	r := whoami("k")
	owner := uuid.New()
	tok, err := services.NewAuthService(logger.Nop(), "k", "").IssueToken(owner, "s1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"owner":"`+owner.String()+`","session":"s1"}`, rec.Body.String())

	// EventSource clients pass the token in the query.
	req = httptest.NewRequest(http.MethodGet, "/whoami?token="+tok, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthRejects(t *testing.T) {
	r := whoami("k")
	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer nope",
		"basic":   "Basic dXNlcjpwYXNz",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
		})
	}

	// An owner header is ignored once tokens are required.
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(headerOwnerID, uuid.NewString())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthOwnerHeaderWithoutKey(t *testing.T) {
	r := whoami("")
	owner := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(headerOwnerID, owner.String())
	req.Header.Set(headerSessionID, "tab-2")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), owner.String())
	assert.Contains(t, rec.Body.String(), "tab-2")

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(headerOwnerID, "not-a-uuid")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(headerOwnerID, uuid.Nil.String())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
