package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atlekbai/query_engine/internal/auth"
	"github.com/atlekbai/query_engine/internal/query"
	"github.com/atlekbai/query_engine/internal/schema"
)

type Handler struct {
	cache       *schema.Cache
	transformer *query.Transformer
}

func New(cache *schema.Cache, transformer *query.Transformer) *Handler {
	return &Handler{cache: cache, transformer: transformer}
}

// List handles GET /api/{entity}: it compiles the query string into a
// filtered, owner-scoped, paginated query and returns the page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entityName := mux.Vars(r)["entity"]
	ent := h.cache.Get(entityName)
	if ent == nil {
		writeError(w, http.StatusNotFound, "ENTITY_NOT_FOUND",
			"Entity not found",
			"No entity registered with name '"+entityName+"'")
		return
	}

	args := flattenArgs(r)
	caller := auth.FromContext(r.Context())

	page, err := h.transformer.Construct(r.Context(), ent, caller, args, nil, true)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// flattenArgs reduces the query string to the flat key→value mapping
// the engine consumes. Repeated keys keep their first value.
func flattenArgs(r *http.Request) map[string]string {
	values := r.URL.Query()
	args := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			args[key] = vals[0]
		}
	}
	return args
}

// writeQueryError maps engine errors onto responses: both validation
// kinds are client errors carrying their structured description;
// anything else is internal.
func writeQueryError(w http.ResponseWriter, err error) {
	var fe *query.FieldError
	if errors.As(err, &fe) {
		writeError(w, http.StatusBadRequest, "INVALID_FIELD", "Invalid form",
			map[string]any{"fields": fe.Fields})
		return
	}
	var ce *query.ConstructionError
	if errors.As(err, &ce) {
		writeError(w, http.StatusBadRequest, "QUERY_CONSTRUCTION", "Invalid form",
			map[string]any{"query_construction": map[string]any{"keys": ce.Keys, "args": ce.Args}})
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Query failed", nil)
}
