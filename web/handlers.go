package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planora/planora/app"
	"github.com/planora/planora/core/input"
)

// List handles GET /api/{entity}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity := getIdentity(r.Context())
	entity := chi.URLParam(r, "entity")

	rows, err := h.dispatcher.List(r.Context(), identity.Role, entity)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "count": len(rows)})
}

// Read handles GET /api/{entity}/{id}.
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	identity := getIdentity(r.Context())
	entity := chi.URLParam(r, "entity")
	id := chi.URLParam(r, "id")

	row, err := h.dispatcher.Read(r.Context(), identity.Role, entity, id)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": row})
}

// Create handles POST /api/{entity}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity := getIdentity(r.Context())
	entity := chi.URLParam(r, "entity")

	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	row, err := h.dispatcher.Create(r.Context(), identity.Role, entity, body)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": row})
}

// Update handles PUT /api/{entity}/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity := getIdentity(r.Context())
	entity := chi.URLParam(r, "entity")
	id := chi.URLParam(r, "id")

	body, ok := h.decodeBody(w, r)
	if !ok {
		return
	}

	row, err := h.dispatcher.Update(r.Context(), identity.Role, entity, id, body)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": row})
}

// Delete handles DELETE /api/{entity}/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := getIdentity(r.Context())
	entity := chi.URLParam(r, "entity")
	id := chi.URLParam(r, "id")

	if err := h.dispatcher.Delete(r.Context(), identity.Role, entity, id); err != nil {
		h.writeDispatchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteByKey handles DELETE /api/{entity} for conflict-key entities.
// The key tuple comes from query parameters in external field names.
func (h *Handler) DeleteByKey(w http.ResponseWriter, r *http.Request) {
	identity := getIdentity(r.Context())
	entity := chi.URLParam(r, "entity")

	key := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			key[name] = values[0]
		}
	}

	if err := h.dispatcher.DeleteByKey(r.Context(), identity.Role, entity, key); err != nil {
		h.writeDispatchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody reads the request body into an input value. A false return
// means the response was already written.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request) (input.Value, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large or unreadable", nil)
		return input.Undefined(), false
	}

	body, err := input.FromJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed json", nil)
		return input.Undefined(), false
	}
	return body, true
}

// writeDispatchError maps the dispatcher's error taxonomy onto HTTP
// statuses. Unknown errors are opaque 500s; the detail stays in the log.
func (h *Handler) writeDispatchError(w http.ResponseWriter, err error) {
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]any{
			"fieldErrors": verr.FieldErrors(),
		})
		return
	}

	var authErr *app.AuthorizationError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusForbidden, authErr.Error(), nil)
		return
	}

	var nf *app.NotFoundError
	if errors.As(err, &nf) {
		writeError(w, http.StatusNotFound, nf.Error(), nil)
		return
	}

	var conflict *app.ConflictError
	if errors.As(err, &conflict) {
		writeError(w, http.StatusConflict, conflict.Error(), map[string]any{
			"entity":  conflict.Entity,
			"id":      conflict.ID,
			"version": conflict.Version,
		})
		return
	}

	h.logger.Error().Err(err).Msg("unhandled dispatch error")
	writeError(w, http.StatusInternalServerError, "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]any) {
	body := map[string]any{"error": message}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
