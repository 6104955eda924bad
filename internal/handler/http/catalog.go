package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SofiaQuintana/products-inventory/internal/service"
	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
	"github.com/SofiaQuintana/products-inventory/pkg/httputil"
	"github.com/SofiaQuintana/products-inventory/pkg/logger"
	"github.com/SofiaQuintana/products-inventory/pkg/middleware"
	"github.com/SofiaQuintana/products-inventory/pkg/pagination"
	"github.com/SofiaQuintana/products-inventory/pkg/validator"
)

// CatalogHandler serves ingestion, search and suggestion endpoints.
type CatalogHandler struct {
	search  *service.SearchService
	suggest *service.SuggestService
	ingest  *service.IngestService
	logger  *slog.Logger
}

// NewCatalogHandler creates the catalog HTTP handler.
func NewCatalogHandler(search *service.SearchService, suggest *service.SuggestService, ingest *service.IngestService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		search:  search,
		suggest: suggest,
		ingest:  ingest,
		logger:  logger,
	}
}

// --- Request and response DTOs ---

// LoadRequest is the optional JSON body of POST /index/load.
type LoadRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
}

// LoadResponse summarizes a completed ingestion run.
type LoadResponse struct {
	OK             bool   `json:"ok"`
	RunID          string `json:"runId"`
	Inserted       int64  `json:"inserted"`
	Updated        int64  `json:"updated"`
	Errors         int64  `json:"errors"`
	TotalProcessed int64  `json:"totalProcessed"`
	DurationMs     int64  `json:"durationMs"`
	DocsPerSecond  int64  `json:"docsPerSecond"`
}

// LoadFailure is returned when a run cannot complete.
type LoadFailure struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type searchRequest struct {
	Q string `query:"q" validate:"required,max=512"`
}

type suggestRequest struct {
	Q string `query:"q" validate:"max=512"`
}

// --- Handlers ---

// Load handles POST /index/load.
func (h *CatalogHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		if errors.Is(err, validator.ErrMalformedBody) {
			err = apperrors.InvalidInput("request body must be a JSON object")
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	stats, err := h.ingest.Load(r.Context(), req.Path)
	if err != nil {
		message := err.Error()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "load failed",
			slog.String("path", req.Path),
			slog.String("subject", middleware.SubjectFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, LoadFailure{OK: false, Error: message})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoadResponse{
		OK:             true,
		RunID:          stats.RunID,
		Inserted:       stats.Inserted,
		Updated:        stats.Updated,
		Errors:         stats.Errors,
		TotalProcessed: stats.TotalProcessed,
		DurationMs:     stats.DurationMs(),
		DocsPerSecond:  stats.DocsPerSecond(),
	})
}

// Search handles GET /search?q=&page=&limit=.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Q: strings.TrimSpace(r.URL.Query().Get("q"))}
	if err := validator.Validate(req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	params := pagination.FromRequest(r)

	result, err := h.search.Search(r.Context(), req.Q, params.Page, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// Suggest handles GET /suggest?q=.
func (h *CatalogHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	req := suggestRequest{Q: r.URL.Query().Get("q")}
	if err := validator.Validate(req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.suggest.Suggest(r.Context(), req.Q)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
