// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/novalabs/eventsim/internal/event"
	"github.com/novalabs/eventsim/internal/log"
	"github.com/novalabs/eventsim/internal/metrics"
	"github.com/novalabs/eventsim/internal/store"
)

// maxEventBody bounds a POSTed event; the largest valid event is well below it.
const maxEventBody = 16 << 10

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var e event.Event
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEventBody))
	if err := dec.Decode(&e); err != nil {
		metrics.RecordRejected("malformed")
		logger.Warn().Err(err).Str(log.FieldEvent, "event.rejected").Msg("malformed event body")
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "request body must be a JSON event")
		return
	}
	if err := e.Validate(); err != nil {
		metrics.RecordRejected("invalid")
		logger.Warn().Err(err).Str(log.FieldEvent, "event.rejected").Str(log.FieldEventType, e.Type).Msg("invalid event")
		writeError(w, r, http.StatusBadRequest, codeInvalid, err.Error())
		return
	}

	stored := event.NewStored(e)
	if err := s.store.Add(r.Context(), stored); err != nil {
		metrics.RecordRejected("store")
		logger.Error().Err(err).Str(log.FieldEvent, "event.store_failed").Str(log.FieldEventType, e.Type).Msg("could not store event")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "event could not be stored")
		return
	}
	metrics.RecordStored(e.Type)

	logger.Debug().
		Str(log.FieldEvent, "event.stored").
		Str(log.FieldEventID, stored.UUID.String()).
		Str(log.FieldEventType, e.Type).
		Str(log.FieldValue, e.Value).
		Int64(log.FieldEpochMillis, e.EpochMillis).
		Msg("event stored")

	w.Header().Set("Location", s.cfg.ContextPath+"/events/"+e.Type+"/")
	w.WriteHeader(http.StatusCreated)
}

// handleLatestEvents degrades to an empty list when the store fails.
func (s *Server) handleLatestEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.LatestPerType(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("could not read latest events")
		events = nil
	}
	writeJSON(w, http.StatusOK, event.Views(events))
}

func (s *Server) handleAllEvents(w http.ResponseWriter, r *http.Request) {
	s.writeRange(w, r, chi.URLParam(r, "type"), 0, s.now().UnixMilli())
}

func (s *Server) handleFindEvents(w http.ResponseWriter, r *http.Request) {
	earliest, err := strconv.ParseInt(chi.URLParam(r, "earliest"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "earliest must be milliseconds since the epoch")
		return
	}
	latest := s.now().UnixMilli()
	if raw := chi.URLParam(r, "latest"); raw != "" {
		latest, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, "latest must be milliseconds since the epoch")
			return
		}
	}
	s.writeRange(w, r, chi.URLParam(r, "type"), earliest, latest)
}

func (s *Server) writeRange(w http.ResponseWriter, r *http.Request, eventType string, earliest, latest int64) {
	events, err := s.store.Find(r.Context(), eventType, earliest, latest)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().
			Err(err).
			Str(log.FieldEventType, eventType).
			Int64("earliest", earliest).
			Int64("latest", latest).
			Msg("could not read events")
		events = nil
	}
	writeJSON(w, http.StatusOK, event.Views(events))
}

func (s *Server) handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "type")
	e, err := s.store.Latest(r.Context(), eventType)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no events of type "+eventType)
		return
	}
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEventType, eventType).Msg("could not read latest event")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "latest event unavailable")
		return
	}
	writeJSON(w, http.StatusOK, e.View())
}

func (s *Server) handleCountEvents(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "type")
	n, err := s.store.Count(r.Context(), eventType)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEventType, eventType).Msg("could not count events")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "count unavailable")
		return
	}
	writeJSON(w, http.StatusOK, event.Count{Type: eventType, Count: n})
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.Types(r.Context())
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("could not read event types")
		types = []string{}
	}
	writeJSON(w, http.StatusOK, types)
}
