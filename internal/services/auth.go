package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/chartmotion-backend/internal/platform/ctxutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

var ErrAuthDisabled = errors.New("auth disabled: JWT_SECRET_KEY is not set")

// AuthService issues and verifies bearer tokens. Tokens are self-contained: the subject
// is the owner id and "sid" the session id.
type AuthService interface {
	Enabled() bool
	IssueToken(ownerID uuid.UUID, sessionID string, ttl time.Duration) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type JWTClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
	issuer       string
}

func NewAuthService(log *logger.Logger, jwtSecretKey, issuer string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: strings.TrimSpace(jwtSecretKey),
		issuer:       strings.TrimSpace(issuer),
	}
}

func (as *authService) Enabled() bool { return as.jwtSecretKey != "" }

func (as *authService) IssueToken(ownerID uuid.UUID, sessionID string, ttl time.Duration) (string, error) {
	if !as.Enabled() {
		return "", ErrAuthDisabled
	}
	if ownerID == uuid.Nil {
		return "", fmt.Errorf("owner id required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := time.Now()
	claims := JWTClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  ownerID.String(),
			Issuer:   as.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if !as.Enabled() {
		return ctx, ErrAuthDisabled
	}
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, opts...)
	if err != nil {
		return ctx, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid owner id in token: %w", err)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{OwnerID: ownerID, SessionID: claims.SessionID}), nil
}
