package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reliefhub/reliefhub/models"
)

var (
	// ErrTokenInvalid indicates that a JWT failed signature or claim
	// validation.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrNoBearerToken indicates that an Authorization header did not carry
	// a bearer token.
	ErrNoBearerToken = errors.New("no bearer token in authorization header")
)

// GenerateJWTToken creates a signed JWT for the given user.
//
// The token carries the user id as subject, the login, and a
// comma-separated role list, and expires after tokenLifetime.
func GenerateJWTToken(user models.User, secretKey string, tokenLifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", user.UserID),
		"login": user.Login,
		"roles": user.Roles,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	return signed, nil
}

// ValidateAndParseJWTToken verifies the token signature and expiry and
// returns the actor encoded in its claims.
func ValidateAndParseJWTToken(tokenString string, secretKey string) (models.Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrTokenInvalid, t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Actor{}, ErrTokenInvalid
	}

	var actor models.Actor
	if sub, err := claims.GetSubject(); err == nil {
		fmt.Sscanf(sub, "%d", &actor.UserID)
	}
	if login, ok := claims["login"].(string); ok {
		actor.Login = login
	}
	if roles, ok := claims["roles"].(string); ok && roles != "" {
		actor.Roles = strings.Split(roles, ",")
	}

	return actor, nil
}

// ParseBearerToken extracts the token part of a "Bearer <token>"
// Authorization header value.
func ParseBearerToken(authHeader string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", ErrNoBearerToken
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	if token == "" {
		return "", ErrNoBearerToken
	}

	return token, nil
}
