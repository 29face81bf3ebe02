// Package router exposes the catalog client over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/normalize"
	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
	"github.com/mohammed-shakir/scene-catalog/internal/mapper"
)

const (
	maxDisplayIDs = 1000
	maxBodyBytes  = 1 << 20
)

// Catalog is the part of *catalog.Client the gateway serves.
type Catalog interface {
	Search(ctx context.Context, p catalog.SearchParams) ([]normalize.Record, error)
	GetMetadata(ctx context.Context, entityID, dataset string, includeBrowse bool) (normalize.Record, error)
	GetDisplayID(ctx context.Context, entityID, dataset string) (string, error)
}

// EntityResolver maps display ids to entity ids; *entityid.Cache implements it.
type EntityResolver interface {
	ResolveEntityIDs(ctx context.Context, displayIDs []string, dataset string) ([]string, error)
}

// ScenePublisher receives search results; a nil *sceneevents.Publisher is fine.
type ScenePublisher interface {
	PublishRecords(dataset string, recs []normalize.Record)
}

type Deps struct {
	Logger     *slog.Logger
	Catalog    Catalog
	Resolver   EntityResolver
	Mapper     mapper.Interface
	Events     ScenePublisher
	DefaultRes int
}

type Handlers struct {
	log        *slog.Logger
	cat        Catalog
	resolver   EntityResolver
	mapper     mapper.Interface
	events     ScenePublisher
	defaultRes int
}

func New(d Deps) *Handlers {
	l := d.Logger
	if l == nil {
		l = logger.Discard()
	}
	return &Handlers{
		log:        l,
		cat:        d.Catalog,
		resolver:   d.Resolver,
		mapper:     d.Mapper,
		events:     d.Events,
		defaultRes: d.DefaultRes,
	}
}

// Mount registers the API routes on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/search", instrument("/search", h.Search))
	r.Get("/scenes/{dataset}/{entityID}", instrument("/scenes/{dataset}/{entityID}", h.Metadata))
	r.Get("/scenes/{dataset}/{entityID}/display-id", instrument("/scenes/{dataset}/{entityID}/display-id", h.DisplayID))
	r.Get("/scenes/{dataset}/{entityID}/cells", instrument("/scenes/{dataset}/{entityID}/cells", h.Cells))
	r.Post("/entity-ids", instrument("/entity-ids", h.EntityIDs))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func instrument(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type searchResponse struct {
	Dataset string             `json:"dataset"`
	Count   int                `json:"count"`
	Results []normalize.Record `json:"results"`
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	p, err := ParseSearchParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := logger.WithDataset(r.Context(), p.Dataset)
	if p.Longitude != nil && p.BBox != nil {
		h.log.DebugContext(ctx, "both point and bbox supplied; searching by point")
	}

	recs, err := h.cat.Search(ctx, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.events != nil {
		h.events.PublishRecords(p.Dataset, recs)
	}
	writeJSON(w, http.StatusOK, searchResponse{Dataset: p.Dataset, Count: len(recs), Results: recs})
}

func (h *Handlers) Metadata(w http.ResponseWriter, r *http.Request) {
	dataset, entityID := chi.URLParam(r, "dataset"), chi.URLParam(r, "entityID")
	browse := strings.EqualFold(r.URL.Query().Get("browse"), "true")

	rec, err := h.cat.GetMetadata(logger.WithDataset(r.Context(), dataset), entityID, dataset, browse)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) DisplayID(w http.ResponseWriter, r *http.Request) {
	dataset, entityID := chi.URLParam(r, "dataset"), chi.URLParam(r, "entityID")

	id, err := h.cat.GetDisplayID(logger.WithDataset(r.Context(), dataset), entityID, dataset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"dataset":    dataset,
		"entity_id":  entityID,
		"display_id": id,
	})
}

type cellsResponse struct {
	Dataset  string   `json:"dataset"`
	EntityID string   `json:"entity_id"`
	Res      int      `json:"res"`
	Cells    []string `json:"cells"`
}

func (h *Handlers) Cells(w http.ResponseWriter, r *http.Request) {
	dataset, entityID := chi.URLParam(r, "dataset"), chi.URLParam(r, "entityID")
	res, err := parseRes(r.URL.Query().Get("res"), h.defaultRes)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.cat.GetMetadata(logger.WithDataset(r.Context(), dataset), entityID, dataset, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fp, err := rec.Footprint()
	if err != nil {
		writeError(w, http.StatusNotFound, "scene has no usable footprint: "+err.Error())
		return
	}
	cells, err := h.mapper.CellsForGeometry(fp, res)
	if err != nil {
		h.log.WarnContext(r.Context(), "footprint coverage failed", "entity_id", entityID, "err", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cellsResponse{Dataset: dataset, EntityID: entityID, Res: res, Cells: cells})
}

type entityIDsRequest struct {
	Dataset    string   `json:"dataset"`
	DisplayIDs []string `json:"display_ids"`
}

type entityIDsResponse struct {
	Dataset    string   `json:"dataset"`
	DisplayIDs []string `json:"display_ids"`
	EntityIDs  []string `json:"entity_ids"`
}

func (h *Handlers) EntityIDs(w http.ResponseWriter, r *http.Request) {
	var req entityIDsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.fail(w, r, invalid("invalid body: %v", err))
		return
	}
	req.Dataset = strings.TrimSpace(req.Dataset)
	switch {
	case req.Dataset == "":
		h.fail(w, r, invalid("missing dataset"))
		return
	case len(req.DisplayIDs) == 0:
		h.fail(w, r, invalid("display_ids must not be empty"))
		return
	case len(req.DisplayIDs) > maxDisplayIDs:
		h.fail(w, r, invalid("at most %d display_ids per request", maxDisplayIDs))
		return
	}

	ids, err := h.resolver.ResolveEntityIDs(logger.WithDataset(r.Context(), req.Dataset), req.DisplayIDs, req.Dataset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityIDsResponse{Dataset: req.Dataset, DisplayIDs: req.DisplayIDs, EntityIDs: ids})
}

// fail maps an error to its HTTP status.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status >= 500 {
		h.log.ErrorContext(r.Context(), "request failed", "status", status, "err", err)
	} else {
		h.log.DebugContext(r.Context(), "request rejected", "status", status, "err", err)
	}
	writeError(w, status, err.Error())
}

// StatusOf is the gateway status for an error from the catalog layer.
func StatusOf(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrSceneNotFound):
		return http.StatusNotFound
	case catalog.IsRateLimit(err):
		return http.StatusTooManyRequests
	case catalog.IsAuth(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
