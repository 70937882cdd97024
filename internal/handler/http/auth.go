package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/internal/utils"
	"github.com/reliefhub/reliefhub/models"
)

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// login handles POST /auth/login: verifies the credentials against the
// account table and issues a bearer JWT.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		log.Err(err).Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByLogin(ctx, creds.Login)
	if err != nil {
		if errors.Is(err, store.ErrNoUserWasFound) {
			log.Err(err).Msg("no user was found")
			writeError(w, r, ErrInvalidCredentials)
			return
		}
		writeError(w, r, err)
		return
	}

	if !utils.VerifyHash(creds.Password, h.cfg.Auth.PasswordHashKey, user.PasswordHash) {
		log.Warn().Str("login", creds.Login).Msg("wrong password")
		writeError(w, r, ErrInvalidCredentials)
		return
	}

	token, err := utils.GenerateJWTToken(user, h.cfg.Auth.TokenSignKey, h.cfg.Auth.TokenDuration)
	if err != nil {
		log.Err(err).Msg("creation of token failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	log.Debug().Int64("id", user.UserID).Msg("user successfully logged in")

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))
	utils.WriteJSON(w, tokenResponse{Token: token}, http.StatusOK)
}

// register handles POST /auth/register: account creation, restricted to
// administrators.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	actor, _ := utils.GetActorFromContext(ctx)
	if !actor.HasRole(models.RoleAdmin) {
		writeError(w, r, fmt.Errorf("%w: account creation", resource.ErrPermissionDenied))
		return
	}

	var req struct {
		credentials
		Name  string `json:"name"`
		Roles string `json:"roles"`
		Realm int64  `json:"realm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("Invalid JSON was passed")
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}
	if req.Login == "" || req.Password == "" {
		http.Error(w, "login and password are required", http.StatusBadRequest)
		return
	}
	if req.Roles == "" {
		req.Roles = models.RoleReader
	}

	user := models.User{
		Login:        req.Login,
		Name:         req.Name,
		Roles:        req.Roles,
		Realm:        req.Realm,
		PasswordHash: utils.HashString(req.Password, h.cfg.Auth.PasswordHashKey),
	}

	created, err := h.users.CreateUser(ctx, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("login", created.Login).Msg("account created")
	utils.WriteJSON(w, created, http.StatusCreated)
}
