package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

func TestIssueAndVerifyToken(t *testing.T) {
	as := NewAuthService(logger.Nop(), "s3cret", "chartmotion")
	owner := uuid.New()

	tok, err := as.IssueToken(owner, "sess-1", time.Hour)
	require.NoError(t, err)

	ctx, err := as.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)
	rd := ctxutil.GetRequestData(ctx)
	require.NotNil(t, rd)
	assert.Equal(t, owner, rd.OwnerID)
	assert.Equal(t, "sess-1", rd.SessionID)
}

func TestTokenRejections(t *testing.T) {
	as := NewAuthService(logger.Nop(), "s3cret", "")
	owner := uuid.New()

	claims := JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   owner.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	other, err := NewAuthService(logger.Nop(), "different", "").IssueToken(owner, "", time.Hour)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "nope"}}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":       "",
		"garbage":     "not.a.jwt",
		"expired":     expired,
		"wrong key":   other,
		"bad subject": badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := as.SetContextFromToken(context.Background(), tok)
			assert.Error(t, err)
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	as := NewAuthService(logger.Nop(), "  ", "")
	assert.False(t, as.Enabled())
	_, err := as.IssueToken(uuid.New(), "", time.Hour)
	assert.ErrorIs(t, err, ErrAuthDisabled)
}
