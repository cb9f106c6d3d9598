package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/skfed/internal/assistant"
	"github.com/hyperjump/skfed/internal/config"
	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reqID := middleware.GetReqID(r.Context())
	s.logger.Debug("chat request", zap.String("request_id", reqID), zap.Int("message_len", len(req.Message)))

	reply, err := s.assistant.Respond(r.Context(), req.Message)
	if err != nil {
		status := assistant.StatusForError(err)
		s.logger.Error("chat request failed",
			zap.String("request_id", reqID),
			zap.Int("status", status),
			zap.Error(err),
		)
		s.respondError(w, status, assistant.MessageForError(err))
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{Response: reply})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := s.storage.CountEvents(ctx)
	if err != nil {
		s.logger.Error("status: count events failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	announcements, err := s.storage.CountAnnouncements(ctx)
	if err != nil {
		s.logger.Error("status: count announcements failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	registrations, err := s.storage.CountRegistrations(ctx)
	if err != nil {
		s.logger.Error("status: count registrations failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"events":        events,
		"announcements": announcements,
		"registrations": registrations,
	}
	if s.keyword != nil {
		if n, err := s.keyword.DocCount(); err == nil {
			resp["keyword_index_docs"] = n
		}
	}

	st := s.config.Storage
	configInfo := map[string]interface{}{
		"storage_driver":   st.Driver,
		"completion_model": s.config.Completion.Model,
		"search_backend":   s.config.Assistant.SearchBackend,
		"bleve_index_path": st.BleveIndexPath,
	}
	dbPath := ""
	if st.Driver == config.DriverSQLite {
		dbPath = st.DatabasePath
		configInfo["database_path"] = dbPath
	}
	if usage, err := storage.MeasureDiskUsage(dbPath, st.BleveIndexPath); err == nil {
		resp["disk_usage_bytes"] = usage.Total()
		resp["disk_usage"] = usage
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
