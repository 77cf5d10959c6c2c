package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shiori/internal/agent"
	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/pkg/utils"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "shiori",
		"version": s.version,
		"tool":    retrieval.ToolName,
		"endpoints": map[string]string{
			"query":  "POST /api/v1/query",
			"chat":   "POST /api/v1/chat",
			"status": "GET /api/v1/status",
			"reload": "POST /api/v1/index/reload",
			"health": "GET /health",
		},
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	defaultN, maxN := s.tool.Limits()
	if err := req.Validate(defaultN, maxN); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request",
		zap.String("query", utils.Truncate(req.Query, 80)), zap.Int("max_results", req.MaxResults))

	results, err := s.tool.SearchNotes(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.fail(w, "query", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.QueryResponse{Query: req.Query, Results: results})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.respondError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.Int("messages", len(req.Messages)), zap.String("model", req.Model))

	res, err := s.chat.Run(r.Context(), req)
	if err != nil {
		s.fail(w, "chat", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{
		ID:        res.ID,
		Model:     res.Model,
		Message:   models.ReplyMessage{Role: models.RoleAssistant, Content: res.Message.Content},
		Usage:     res.Usage,
		State:     res.State.String(),
		Turns:     res.Turns,
		ToolCalls: res.ToolCalls,
	})
}

type healthResponse struct {
	Status string `json:"status"`
	models.Health
}

func (s *Server) health() healthResponse {
	h := s.handle.Health()
	status := "healthy"
	if !h.Loaded {
		status = "degraded"
	}
	return healthResponse{Status: status, Health: h}
}

// handleHealth always answers 200 so liveness probes do not depend on the index.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.health())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"health": s.health(),
	}
	if store := s.handle.Current(); store != nil {
		m := store.Manifest()
		resp["build"] = map[string]interface{}{
			"build_id":      m.BuildID.String(),
			"created_at":    m.CreatedAt,
			"chunk_size":    m.ChunkSize,
			"chunk_overlap": m.ChunkOverlap,
		}
	}

	cfg := s.config
	defaultN, maxN := s.tool.Limits()
	configInfo := map[string]interface{}{
		"index_type":           cfg.Storage.IndexType,
		"index_path":           cfg.Storage.IndexPath,
		"metadata_path":        cfg.Storage.MetadataPath,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_model":      cfg.Embedding.Model,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"chunk_size":           cfg.Chunking.Size,
		"chunk_overlap":        cfg.Chunking.OverlapOrDefault(),
		"default_results":      defaultN,
		"max_results":          maxN,
		"chat_enabled":         s.chat != nil,
	}
	if s.chat != nil {
		configInfo["agent_model"] = cfg.Agent.Model
		configInfo["max_turns"] = s.chat.MaxTurns()
	}
	resp["config"] = configInfo

	diskBytes, err := s.artifacts().DiskUsage()
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Debug("status: disk usage unavailable", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	store, err := s.handle.Reload(s.artifacts(), s.config.Embedding.Dimensions)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.fail(w, "reload", err)
		return
	}
	s.logger.Info("index reloaded",
		zap.Int("entries", store.Len()), zap.String("build_id", store.Manifest().BuildID.String()))
	s.respondJSON(w, http.StatusOK, s.health())
}

// fail logs err and answers with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrInvalidRequest), errors.Is(err, apperr.ErrToolInvocation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrIndexNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrService):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
