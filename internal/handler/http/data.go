package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reliefhub/reliefhub/internal/importer"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/internal/utils"
	"github.com/reliefhub/reliefhub/models"
)

// listResource handles GET /{prefix}/{name}[.{format}].
func (h *Handler) listResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	name, format, err := splitFormat(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.factory.Resource(chi.URLParam(r, "prefix"), name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := parseQuery(r, res.Table())
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := res.Select(ctx, actor, q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.serializer.Export(ctx, res.Table(), records, exportOpts(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.writeDocument(w, r, res.Table(), doc, format, http.StatusOK)
}

// readResource handles GET /{prefix}/{name}/{id_or_uuid}[.{format}].
func (h *Handler) readResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	res, ident, format, err := h.resolveRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.loadRow(r, res, actor, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.serializer.Export(ctx, res.Table(), []models.Record{*rec}, exportOpts(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.writeDocument(w, r, res.Table(), doc, format, http.StatusOK)
}

// createResource handles POST /{prefix}/{name}: the body is a canonical
// document run through the importer. Partial failures commit and are
// reported per item; a run creating nothing is rejected as a whole.
func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)
	actor, _ := utils.GetActorFromContext(ctx)

	if _, _, err := splitFormat(chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := serializer.Parse(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.importer.Run(ctx, actor, doc, importer.Options{})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if report.Total() == 0 && len(report.Errors) > 0 {
		utils.WriteJSON(w, models.ErrorResponse{
			Status:  http.StatusUnprocessableEntity,
			Message: "no item was accepted",
			Items:   report.Errors,
		}, http.StatusUnprocessableEntity)
		return
	}

	log.Info().
		Int("created", report.Created).
		Int("errors", len(report.Errors)).
		Msg("import via api finished")
	utils.WriteJSON(w, report, http.StatusCreated)
}

// updateResource handles PUT /{prefix}/{name}/{id_or_uuid}: a single-item
// import update. The payload element is bound to the addressed row and runs
// through the importer with updates forced, so references resolve the same
// way they do during sync.
func (h *Handler) updateResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	res, ident, _, err := h.resolveRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.loadRow(r, res, actor, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := serializer.Parse(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(doc.Resources) == 0 {
		writeError(w, r, importer.ErrEmptyDocument)
		return
	}

	elem := &doc.Resources[0]
	elem.Name = res.Table().Name
	elem.UUID = rec.UUID
	doc.Resources = doc.Resources[:1]

	report, err := h.importer.Run(ctx, actor, doc, importer.Options{
		Policy:   models.PolicyMaster,
		Master:   true,
		Strategy: models.SyncStrategy{Update: true},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if len(report.Errors) > 0 {
		utils.WriteJSON(w, models.ErrorResponse{
			Status:  http.StatusUnprocessableEntity,
			Message: "update rejected",
			Items:   report.Errors,
		}, http.StatusUnprocessableEntity)
		return
	}

	utils.WriteJSON(w, report, http.StatusOK)
}

// deleteResource handles DELETE /{prefix}/{name}/{id_or_uuid}: soft delete
// with component cascade, 204 on success.
func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	res, ident, _, err := h.resolveRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.loadRow(r, res, actor, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err = res.Delete(ctx, actor, rec.ID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listComponent handles GET /{prefix}/{name}/{id_or_uuid}/{component}.
func (h *Handler) listComponent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	res, ident, _, err := h.resolveRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	parent, err := h.loadRow(r, res, actor, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}

	compName, format, err := splitFormat(chi.URLParam(r, "component"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	child, comp, err := res.Component(compName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := parseQuery(r, child.Table())
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := res.ComponentRecords(ctx, actor, comp, parent.ID, q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.serializer.Export(ctx, child.Table(), records, exportOpts(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.writeDocument(w, r, child.Table(), doc, format, http.StatusOK)
}

// readComponentRecord handles GET /{prefix}/{name}/{id}/{component}/{cid}.
// The component row must be joined to the addressed parent.
func (h *Handler) readComponentRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := utils.GetActorFromContext(ctx)

	res, ident, _, err := h.resolveRow(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	parent, err := h.loadRow(r, res, actor, ident)
	if err != nil {
		writeError(w, r, err)
		return
	}

	compName, _, err := splitFormat(chi.URLParam(r, "component"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	child, comp, err := res.Component(compName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cidSegment, format, err := splitFormat(chi.URLParam(r, "cid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cident, err := parseIdentifier(cidSegment)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.loadRow(r, child, actor, cident)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if comp.JoinField != "" {
		if v, ok := rec.Value(comp.JoinField); !ok || v != parent.ID {
			writeError(w, r, fmt.Errorf("%w: %s", store.ErrNotFound, child.Table().Name))
			return
		}
	}

	doc, err := h.serializer.Export(ctx, child.Table(), []models.Record{*rec}, exportOpts(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.writeDocument(w, r, child.Table(), doc, format, http.StatusOK)
}

// resolveRow parses the (prefix, name, id) path segments of a row-addressed
// route.
func (h *Handler) resolveRow(r *http.Request) (*resource.Resource, rowIdentifier, string, error) {
	name, _, err := splitFormat(chi.URLParam(r, "name"))
	if err != nil {
		return nil, rowIdentifier{}, "", err
	}

	idSegment, format, err := splitFormat(chi.URLParam(r, "id"))
	if err != nil {
		return nil, rowIdentifier{}, "", err
	}

	ident, err := parseIdentifier(idSegment)
	if err != nil {
		return nil, rowIdentifier{}, "", err
	}

	res, err := h.factory.Resource(chi.URLParam(r, "prefix"), name)
	if err != nil {
		return nil, rowIdentifier{}, "", err
	}
	return res, ident, format, nil
}

func (h *Handler) loadRow(r *http.Request, res *resource.Resource, actor models.Actor, ident rowIdentifier) (*models.Record, error) {
	if ident.uuid != "" {
		return res.LoadByUUID(r.Context(), actor, ident.uuid)
	}
	return res.Load(r.Context(), actor, ident.id)
}

// writeDocument renders a canonical document in the requested
// representation.
func (h *Handler) writeDocument(w http.ResponseWriter, r *http.Request, tbl *schema.Table, doc *models.Document, format string, status int) {
	log := logger.FromRequest(r)

	switch format {
	case formatJSON:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := serializer.EncodeJSON(w, doc); err != nil {
			log.Err(err).Msg("failed to encode json projection")
		}
	case formatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(status)
		if err := serializer.EncodeCSV(w, tbl, doc); err != nil {
			log.Err(err).Msg("failed to encode csv projection")
		}
	default:
		payload, err := serializer.Marshal(doc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		if _, err = w.Write(payload); err != nil {
			log.Err(err).Msg("failed to write xml document")
		}
	}
}
