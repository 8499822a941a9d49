package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/lmsearch/internal/mode"
	"github.com/hyperjump/lmsearch/internal/models"
	"github.com/hyperjump/lmsearch/internal/render"
	"github.com/hyperjump/lmsearch/internal/resolve"
	"github.com/hyperjump/lmsearch/internal/session"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

type sessionResponse struct {
	ID       string `json:"id"`
	HintText string `json:"hint_text"`
	Lookup   struct {
		Enabled bool `json:"enabled"`
		Active  bool `json:"active"`
	} `json:"lookup"`
}

// session resolves the {id} parameter, responding 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if errors.Is(err, session.ErrTooMany) {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := sessionResponse{ID: sess.ID, HintText: s.cfg.Search.HintText}
	resp.Lookup.Enabled = sess.Lookup.Enabled()
	resp.Lookup.Active = sess.Lookup.Active()
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type inputRequest struct {
	Text string `json:"text" validate:"max=256"`
	Key  string `json:"key"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req inputRequest
	if !s.decode(w, r, &req) {
		return
	}
	scheduled := sess.Input(req.Text, models.ParseKey(req.Key))
	s.respondJSON(w, http.StatusAccepted, map[string]bool{"scheduled": scheduled})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	items, version := sess.List.Items()
	query := sess.Query()
	s.respondJSON(w, http.StatusOK, suggestionsResponse{Query: query, Version: version, Suggestions: rows(items, query)})
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !s.decode(w, r, &req) {
		return
	}
	strategy, err := sess.Dispatcher.Resolve(r.Context(), req.ID)
	switch {
	case errors.Is(err, resolve.ErrUnknownSuggestion):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, resolve.ErrNoStrategy):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.respondJSON(w, http.StatusBadGateway, map[string]string{"strategy": strategy, "error": err.Error()})
	default:
		s.respondJSON(w, http.StatusOK, map[string]string{"strategy": strategy})
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Clear()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type clickRequest struct {
	Coordinate []float64 `json:"coordinate" validate:"len=2"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if !s.decode(w, r, &req) {
		return
	}
	outcome := sess.Lookup.OnMapClick(r.Context(), orb.Point{req.Coordinate[0], req.Coordinate[1]})
	s.logger.Debug("map click", zap.String("session", sess.ID), zap.String("outcome", string(outcome)))
	s.respondJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Lookup.Enabled() {
		s.respondError(w, http.StatusConflict, "estate lookup is not enabled")
		return
	}
	sess.Lookup.Toggle()
	s.respondJSON(w, http.StatusOK, map[string]bool{"active": sess.Lookup.Active()})
}

// handleInteraction relays a mode event from another click tool of the viewer.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var ev struct {
		Name   string `json:"name" validate:"required"`
		Active bool   `json:"active"`
	}
	if !s.decode(w, r, &ev) {
		return
	}
	sess.Modes.SetActive(ev.Name, ev.Active)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"event":  mode.Event{Name: ev.Name, Active: ev.Active},
		"active": sess.Lookup.Active(),
	})
}

type viewRequest struct {
	Extent []float64 `json:"extent" validate:"len=4"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req viewRequest
	if !s.decode(w, r, &req) {
		return
	}
	ext := render.Extent{req.Extent[0], req.Extent[1], req.Extent[2], req.Extent[3]}
	sess.Canvas.SetExtent(ext.Bound())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"extent": ext})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Canvas.Snapshot())
}

func (s *Server) handleCloseModal(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Canvas.CloseModal()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
