package auth

import (
	"context"
	"easylist-server/internal/observability"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrExpiredToken    = errors.New("token has expired")
	ErrParseJWTToken   = errors.New("failed to parse token")
	ErrInvalidJWTToken = errors.New("invalid token")
)

// OperatorClaims are the JWT claims carried by operator tokens used for the
// recovery and maintenance endpoints.
type OperatorClaims struct {
	ExpirationTime *jwt.NumericDate `json:"exp"`
	IssuedAt       *jwt.NumericDate `json:"iat"`
	NotBefore      *jwt.NumericDate `json:"nbf"`
	Issuer         string           `json:"iss"`
	Subject        string           `json:"sub"`
	Audience       jwt.ClaimStrings `json:"aud"`
}

func (o *OperatorClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return o.ExpirationTime, nil
}

func (o *OperatorClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return o.IssuedAt, nil
}

func (o *OperatorClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return o.NotBefore, nil
}

func (o *OperatorClaims) GetIssuer() (string, error) {
	return o.Issuer, nil
}

func (o *OperatorClaims) GetSubject() (string, error) {
	return o.Subject, nil
}

func (o *OperatorClaims) GetAudience() (jwt.ClaimStrings, error) {
	return o.Audience, nil
}

type Authenticator struct {
	jwtSecret string
	logger    *observability.Logger
}

func New(jwtSecret string, logger *observability.Logger) *Authenticator {
	return &Authenticator{jwtSecret: jwtSecret, logger: logger}
}

func (a *Authenticator) ValidateJWTToken(ctx context.Context, token string) (OperatorClaims, error) {
	var claims OperatorClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			a.logger.Error(ctx, "token expired", err)
			return OperatorClaims{}, ErrExpiredToken
		}

		a.logger.Error(ctx, "failed to parse token", err)
		return OperatorClaims{}, ErrParseJWTToken
	}
	if !t.Valid {
		return OperatorClaims{}, ErrInvalidJWTToken
	}

	parsed, ok := t.Claims.(*OperatorClaims)
	if !ok {
		a.logger.Error(ctx, "failed to extract claims", err)
		return OperatorClaims{}, ErrParseJWTToken
	}

	return *parsed, nil
}

// HandleJWTMiddleware guards operator endpoints. It expects a Bearer token
// signed with the shared operator secret and puts the token subject on the
// gin context as Operator-ID.
func (a *Authenticator) HandleJWTMiddleware(c *gin.Context) {
	ctx := c.Request.Context()
	tokenHeader := c.GetHeader("Authorization")

	if tokenHeader == "" || !strings.HasPrefix(tokenHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	tokenString := strings.TrimPrefix(tokenHeader, "Bearer ")

	claims, err := a.ValidateJWTToken(ctx, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	sub, err := claims.GetSubject()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}
	c.Set("Operator-ID", sub)
	c.Next()
}
