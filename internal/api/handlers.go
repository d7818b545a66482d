// internal/api/handlers.go
//
// HTTP surface for the document store.
//
// Routes (mounted under /api/v1/documents by the caller):
//
//	GET    /        list documents filtered by the query string
//	POST   /{id}    shallow-merge a partial payload into one document
//	DELETE /{id}    delete one document
//
// Workflow
//   1. Decode and validate the request (query string or JSON body).
//   2. Translate into a core filter/mutation and run it on the repository.
//   3. Map sentinel and typed errors onto HTTP status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/docstore/internal/document"
	"github.com/yanizio/docstore/internal/mutation"
	"github.com/yanizio/docstore/internal/query"
	"github.com/yanizio/docstore/internal/repository"
)

// Handlers bundles the repository behind the HTTP endpoints.
type Handlers struct {
	repo *repository.Repository
	log  *zap.SugaredLogger
}

// New returns handlers backed by the given repository.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{
		repo: repo,
		log:  zap.S().With("component", "api"),
	}
}

// Routes assembles the chi router for the document endpoints.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listDocuments)
	r.Post("/{id}", h.updateDocument)
	r.Delete("/{id}", h.deleteDocument)
	return r
}

func (h *Handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	lq, err := parseListQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.repo.List(r.Context(), lq.page(), lq.filter(), nil, nil)
	if err != nil {
		h.respondError(w, h.statusFor(err), err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) updateDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	expr, err := mutation.Concatenate(req.Object)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}

	rows, err := h.repo.BatchUpdate(r.Context(), &query.Filter{ID: id}, nil, expr)
	if err != nil {
		h.respondError(w, h.statusFor(err), err)
		return
	}
	if rows == 0 {
		h.respondError(w, http.StatusNotFound, errors.New("document not found"))
		return
	}

	doc, err := h.repo.ListOne(r.Context(), id)
	if err != nil {
		h.respondError(w, h.statusFor(err), err)
		return
	}
	h.respondJSON(w, http.StatusOK, doc)
}

func (h *Handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteOne(r.Context(), id); err != nil {
		h.respondError(w, h.statusFor(err), err)
		return
	}
	h.respondJSON(w, http.StatusOK, deleteResponse{Success: true})
}

/*──────────────────────────── helpers ────────────────────────────*/

// statusFor maps core errors onto HTTP status codes.
func (h *Handlers) statusFor(err error) int {
	var badToken *query.BadPageTokenError
	var unknownKind *query.UnknownKeyPathKindError
	var mismatch *document.TypeMismatchError
	switch {
	case errors.As(err, &badToken),
		errors.As(err, &unknownKind),
		errors.Is(err, query.ErrEmptyKeyPath):
		return http.StatusBadRequest
	case errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.Is(err, document.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorw("encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "status", status, "error", err)
	} else {
		h.log.Debugw("request rejected", "status", status, "error", err)
	}
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}
