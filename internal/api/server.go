package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/edwinv/session-bot/internal/domain"
	"github.com/edwinv/session-bot/internal/session"
	"github.com/edwinv/session-bot/pkg/utils"
)

// Server read-only HTTP поверхность для наблюдения за сессиями
type Server struct {
	logger   *utils.Logger
	registry *session.Registry
	port     int
	httpSrv  *http.Server
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(logger *utils.Logger, registry *session.Registry, port int) *Server {
	return &Server{
		logger:   logger,
		registry: registry,
		port:     port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/reports", s.handleReports)

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("Starting HTTP server on %s", addr)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown останавливает HTTP сервер, дожидаясь активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// handleHealth - health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	s.sendSuccess(w, health)
}

// handleStatus - get session status for a user
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := getUserID(r)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap, ok := s.registry.Get(userID)
	if !ok {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}

	status := map[string]interface{}{
		"user_id":   snap.UserID,
		"status":    string(snap.Status),
		"timestamp": time.Now().Unix(),
	}
	if !snap.StartedAt.IsZero() {
		status["started_at"] = snap.StartedAt.Unix()
	}

	s.sendSuccess(w, status)
}

// handleReports - get recent session reports for a user
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := getUserID(r)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	limit := getQueryParamInt(r, "limit", domain.ReportHistoryLimit)
	reports, err := s.registry.RecentReports(userID, limit)
	if err != nil {
		s.sendError(w, "Session not found", http.StatusNotFound)
		return
	}

	items := make([]map[string]interface{}, 0, len(reports))
	for _, report := range reports {
		items = append(items, map[string]interface{}{
			"at":      report.At.Unix(),
			"message": report.Message,
		})
	}

	s.sendSuccess(w, map[string]interface{}{
		"user_id":   userID,
		"reports":   items,
		"timestamp": time.Now().Unix(),
	})
}

// Helper methods
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{
		Success: true,
		Data:    data,
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}

func getUserID(r *http.Request) (int64, error) {
	value := r.URL.Query().Get("user_id")
	if value == "" {
		return 0, fmt.Errorf("user_id is required")
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user_id must be an integer")
	}
	return userID, nil
}

// Helper function to parse int query parameter
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
