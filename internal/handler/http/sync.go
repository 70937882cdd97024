package http

import (
	"net/http"
	"time"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/serializer"
	syncer "github.com/reliefhub/reliefhub/internal/sync"
	"github.com/reliefhub/reliefhub/internal/utils"
	"github.com/reliefhub/reliefhub/models"
)

type repositoryIdentity struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// syncRegister handles GET /sync/register: the uuid handshake. The local
// repository announces its identity; the caller's identity arrives in the
// repository header.
func (h *Handler) syncRegister(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	if peer := r.Header.Get(syncer.RepositoryHeader); peer != "" {
		log.Info().Str("peer", peer).Msg("handshake from peer repository")
	}

	w.Header().Set(syncer.RepositoryHeader, h.engine.RepositoryUUID())
	utils.WriteJSON(w, repositoryIdentity{
		UUID: h.engine.RepositoryUUID(),
		Name: h.engine.RepositoryName(),
	}, http.StatusOK)
}

// syncPull handles GET /sync/pull?resource=&msince=: exports the named
// resource's rows modified after msince, tombstones included. Resources
// closed to anonymous reads require the caller to authenticate.
func (h *Handler) syncPull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	resourceName := r.URL.Query().Get("resource")
	if resourceName == "" {
		http.Error(w, "resource parameter is required", http.StatusBadRequest)
		return
	}

	var msince time.Time
	if raw := r.URL.Query().Get("msince"); raw != "" {
		t, err := time.Parse(models.MetaTimeFormat, raw)
		if err != nil {
			http.Error(w, "malformed msince parameter", http.StatusBadRequest)
			return
		}
		msince = t
	}

	doc, err := h.engine.ServePull(ctx, actor, resourceName, msince)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := serializer.Marshal(doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set(syncer.RepositoryHeader, h.engine.RepositoryUUID())
	w.Header().Set("Content-Type", "application/xml")
	w.Write(payload)
}

// syncPush handles POST /sync/push: imports a peer's document. The caller
// must authenticate as an account holding the sync role; the peer named in
// the repository header must be registered and flagged accept_push.
func (h *Handler) syncPush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	actor, _ := utils.GetActorFromContext(ctx)

	peer := r.Header.Get(syncer.RepositoryHeader)
	if peer == "" {
		writeError(w, r, ErrMissingPeerHeader)
		return
	}

	doc, err := serializer.Parse(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.engine.ServePush(ctx, actor, peer, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().
		Str("peer", peer).
		Int("accepted", report.Total()).
		Int("errors", len(report.Errors)).
		Msg("push from peer imported")

	w.Header().Set(syncer.RepositoryHeader, h.engine.RepositoryUUID())
	utils.WriteJSON(w, report, http.StatusOK)
}
