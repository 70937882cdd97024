package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/utils"
	"github.com/reliefhub/reliefhub/models"
)

// resolveActor is an HTTP middleware that resolves the request identity.
//
// Requests without an "Authorization" header pass through as the anonymous
// actor; per-resource configuration decides what anonymous actors may read.
// Basic credentials are verified against the auth_user table, bearer tokens
// against the configured JWT signing key. The resolved actor is stored in
// the request context under [utils.ActorCtxKey].
//
// Requests presenting credentials that do not verify are rejected with
// HTTP 401; presenting nothing is not an error at this layer.
func (h *Handler) resolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		var (
			actor models.Actor
			err   error
		)
		switch {
		case strings.HasPrefix(authHeader, "Basic "):
			actor, err = h.basicActor(ctx, r)
		case strings.HasPrefix(authHeader, "Bearer "):
			actor, err = h.bearerActor(authHeader)
		default:
			err = ErrInvalidAuthorizationHeader
		}
		if err != nil {
			log.Err(err).Msg("authentication failed")
			writeError(w, r, err)
			return
		}

		ctx = utils.WithActor(ctx, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// basicActor verifies basic credentials against the account table.
func (h *Handler) basicActor(ctx context.Context, r *http.Request) (models.Actor, error) {
	login, password, ok := r.BasicAuth()
	if !ok {
		return models.Actor{}, ErrInvalidAuthorizationHeader
	}

	user, err := h.users.GetUserByLogin(ctx, login)
	if err != nil {
		return models.Actor{}, ErrInvalidCredentials
	}
	if !utils.VerifyHash(password, h.cfg.Auth.PasswordHashKey, user.PasswordHash) {
		return models.Actor{}, ErrInvalidCredentials
	}

	return user.Actor(), nil
}

// bearerActor validates a JWT bearer token and decodes the actor claims.
func (h *Handler) bearerActor(authHeader string) (models.Actor, error) {
	tokenString, err := utils.ParseBearerToken(authHeader)
	if err != nil {
		return models.Actor{}, err
	}
	return utils.ValidateAndParseJWTToken(tokenString, h.cfg.Auth.TokenSignKey)
}

// withTimeout bounds every request by the configured deadline.
func (h *Handler) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.Server.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Server.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
