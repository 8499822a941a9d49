package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/lmsearch/internal/layers"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/search"
	"go.uber.org/zap"
)

type suggestionRow struct {
	*models.Suggestion
	HTML string `json:"html"`
}

type suggestionsResponse struct {
	Query       string          `json:"query"`
	Version     uint64          `json:"version,omitempty"`
	Suggestions []suggestionRow `json:"suggestions"`
}

func rows(list []*models.Suggestion, query string) []suggestionRow {
	out := make([]suggestionRow, len(list))
	for i, sg := range list {
		out[i] = suggestionRow{Suggestion: sg, HTML: search.RenderRow(sg, query)}
	}
	return out
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := models.SuggestQuery{Query: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}
	if err := q.Validate(s.cfg.Search.Limit); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("suggest request", zap.String("query", q.Query), zap.Int("limit", q.Limit))
	list := s.suggester.Suggest(r.Context(), q.Query, q.Limit)
	s.respondJSON(w, http.StatusOK, suggestionsResponse{Query: q.Query, Suggestions: rows(list, q.Query)})
}

func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.ListLayers(r.Context())
	if err != nil {
		s.logger.Error("list layers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*layers.Layer{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"layers": list})
}

func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.registry.GetLayer(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, layers.ErrLayerNotFound) {
		s.respondError(w, http.StatusNotFound, "layer not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, layer)
}

func (s *Server) handleLayerFeatures(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if id := r.URL.Query().Get("id"); id != "" {
		features, err := s.registry.FeatureByID(r.Context(), name, id)
		s.respondFeatures(w, features, err)
		return
	}
	if _, err := s.registry.GetLayer(r.Context(), name); err != nil {
		s.respondFeatures(w, nil, err)
		return
	}
	features, err := s.registry.ListFeatures(r.Context(), name, offset, limit)
	s.respondFeatures(w, features, err)
}

func (s *Server) respondFeatures(w http.ResponseWriter, features interface{}, err error) {
	if errors.Is(err, layers.ErrLayerNotFound) {
		s.respondError(w, http.StatusNotFound, "layer not found")
		return
	}
	if err != nil {
		s.logger.Error("list features failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"type": "FeatureCollection", "features": features})
}

type importRequest struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handleImportLayers(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.respondError(w, http.StatusNotImplemented, "import not enabled")
		return
	}
	var req importRequest
	if !s.decode(w, r, &req) {
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "path not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("import layers request", zap.String("path", abs))
	exts := s.cfg.Layers.Extensions
	var n int
	if info.IsDir() {
		n, err = s.importer.ImportDirectory(r.Context(), abs, exts)
	} else {
		var imported bool
		imported, err = s.importer.ImportFile(r.Context(), abs, exts)
		if imported {
			n = 1
		}
	}
	if err != nil {
		s.logger.Error("import failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"path": abs, "imported": n})
}

func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.respondError(w, http.StatusNotImplemented, "import not enabled")
		return
	}
	name := chi.URLParam(r, "name")
	s.logger.Debug("delete layer request", zap.String("layer", name))
	if err := s.importer.DeleteLayer(r.Context(), name); err != nil {
		if errors.Is(err, layers.ErrLayerNotFound) {
			s.respondError(w, http.StatusNotFound, "layer not found")
			return
		}
		s.logger.Error("delete layer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleLayerDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	layerCount, err := s.registry.CountLayers(ctx)
	if err != nil {
		s.logger.Error("status: count layers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	featureCount, err := s.registry.CountFeatures(ctx)
	if err != nil {
		s.logger.Error("status: count features failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"layers":         layerCount,
		"features":       featureCount,
		"sessions":       s.sessions.Len(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.keyword != nil {
		if n, err := s.keyword.DocCount(); err == nil {
			resp["indexed_names"] = n
		}
	}
	if bytes, err := layers.StorageBytes(s.cfg.Storage.DatabasePath, s.cfg.Storage.BleveIndexPath); err == nil {
		resp["disk_usage_bytes"] = bytes
	}

	// Add configuration info
	resp["config"] = map[string]interface{}{
		"database_path":    s.cfg.Storage.DatabasePath,
		"bleve_index_path": s.cfg.Storage.BleveIndexPath,
		"show_feature":     s.cfg.Display.ShowFeature,
		"limit":            s.cfg.Search.Limit,
		"min_length":       s.cfg.Search.MinLength,
		"estate_lookup":    s.cfg.Estate.Lookup,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v and validates it, responding 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
