package eventlog

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"leadflow/internal/common/logger"
	"leadflow/internal/models"
)

const (
	EventTypeTest           = "test_event"
	EventTypeTestProcessing = "test_processing_event"
)

// Handler serves the dashboard API and the websocket feed.
type Handler struct {
	service       *Service
	testEndpoints bool
	logger        logger.Logger
}

func NewHandler(svc *Service, testEndpoints bool, log logger.Logger) *Handler {
	return &Handler{service: svc, testEndpoints: testEndpoints, logger: log}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/logs", h.logs)
	mux.HandleFunc("POST /api/logs/check-timeouts", h.checkTimeouts)
	mux.HandleFunc("GET /api/logs/timeout-config", h.timeoutConfig)
	mux.HandleFunc("GET /ws/logs", h.websocket)
	if h.testEndpoints {
		mux.HandleFunc("POST /api/test-event", h.testEvent(EventTypeTest, models.EventStatusSuccess,
			"This is a test event", "Test event created"))
		mux.HandleFunc("POST /api/test-processing-event", h.testEvent(EventTypeTestProcessing, models.EventStatusProcessing,
			"This is a test processing event that will timeout", "Test processing event created"))
	}
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	teamID := r.URL.Query().Get("team_id")

	events, err := h.service.Recent(r.Context(), limit, teamID)
	if err != nil {
		h.logger.Error("failed to fetch logs", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusOK, map[string]interface{}{"logs": []models.EventLog{}, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": events})
}

func (h *Handler) checkTimeouts(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CheckTimeouts(r.Context())
	if err != nil {
		h.logger.Error("manual timeout check failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Timeout check completed successfully",
		"timed_out": n,
	})
}

func (h *Handler) timeoutConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.TimeoutConfig())
}

func (h *Handler) websocket(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	h.service.Hub().Serve(w, r, teamID, h.service.Live(h.service.opts.InitialEvents, teamID))
}

func (h *Handler) testEvent(eventType string, status models.EventStatus, text, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := r.URL.Query().Get("team_id")
		if teamID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": "error", "error": "team_id is required"})
			return
		}

		id, err := h.service.Log(r.Context(), eventType, map[string]interface{}{
			"message":   text,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"team_id":   teamID,
		}, status, teamID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"status": "error", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "event_id": id, "message": reply})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
