package slackingress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	apperrors "leadflow/internal/common/errors"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/flow"
	"leadflow/internal/installations"
	"leadflow/internal/processing"
)

const (
	Source = "slack"

	maxBodyBytes      = 1 << 20
	defaultJobTimeout = 3 * time.Minute
)

const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeRejected  = "rejected"
)

// Processor handles one lead message.
type Processor interface {
	Process(ctx context.Context, msg processing.Message) (string, error)
}

// TokenSource returns a workspace's bot token.
type TokenSource interface {
	SlackToken(ctx context.Context, teamID string) (string, error)
}

type Config struct {
	SigningSecret string
	DefaultToken  string
	JobTimeout    time.Duration
}

// Handler serves POST /slack/events.
type Handler struct {
	config    Config
	dedup     *Deduper
	tokens    TokenSource
	processor Processor
	poster    Poster
	pool      *Pool
	logger    logger.Logger
}

func NewHandler(cfg Config, dedup *Deduper, tokens TokenSource, processor Processor, poster Poster, pool *Pool, log logger.Logger) *Handler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	return &Handler{
		config:    cfg,
		dedup:     dedup,
		tokens:    tokens,
		processor: processor,
		poster:    poster,
		pool:      pool,
		logger:    log.WithFields(map[string]interface{}{"component": "slack-ingress"}),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /slack/events", h)
	mux.HandleFunc("GET /slack/status", h.status)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if err := h.verify(r.Header, body); err != nil {
		stdErr := apperrors.NewInvalidSlackSignatureError(err)
		h.logger.Warn("rejected slack request", map[string]interface{}{"error": stdErr.Error()})
		metrics.IngressEvents.WithLabelValues(Source, outcomeRejected).Inc()
		http.Error(w, "Invalid Slack request", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.Error("invalid slack event payload", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		challenge, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return
	case slackevents.CallbackEvent:
		h.handleCallback(r.Context(), event)
	default:
		metrics.IngressEvents.WithLabelValues(Source, outcomeIgnored).Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) verify(header http.Header, body []byte) error {
	if h.config.SigningSecret == "" {
		return errors.New("signing secret is not configured")
	}
	sv, err := slack.NewSecretsVerifier(header, h.config.SigningSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (h *Handler) handleCallback(ctx context.Context, event slackevents.EventsAPIEvent) {
	callback, ok := event.Data.(*slackevents.EventsAPICallbackEvent)
	if !ok || callback.EventID == "" {
		h.logger.Info("ignoring callback without event_id", nil)
		metrics.IngressEvents.WithLabelValues(Source, outcomeIgnored).Inc()
		return
	}

	if h.dedup.Duplicate(ctx, callback.EventID) {
		h.logger.Info("duplicate slack event", map[string]interface{}{"eventId": callback.EventID})
		metrics.IngressEvents.WithLabelValues(Source, outcomeDuplicate).Inc()
		return
	}

	msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || msg.BotID != "" || msg.SubType != "" || msg.Text == "" {
		metrics.IngressEvents.WithLabelValues(Source, outcomeIgnored).Inc()
		return
	}

	teamID := event.TeamID
	if teamID == "" {
		teamID = flow.DefaultTeam
	}
	threadTS := msg.ThreadTimeStamp
	if threadTS == "" {
		threadTS = msg.TimeStamp
	}
	in := processing.Message{
		Text:      msg.Text,
		TeamID:    teamID,
		Channel:   msg.Channel,
		ThreadRef: threadTS,
		Source:    Source,
	}

	if !h.pool.Submit(func() { h.process(in) }) {
		h.logger.Error("slack worker pool is full, dropping message", map[string]interface{}{
			"eventId": callback.EventID,
			"teamId":  teamID,
		})
		metrics.IngressEvents.WithLabelValues(Source, outcomeRejected).Inc()
		return
	}
	metrics.IngressEvents.WithLabelValues(Source, outcomeAccepted).Inc()
}

func (h *Handler) process(msg processing.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.JobTimeout)
	defer cancel()

	log := h.logger.WithFields(map[string]interface{}{"teamId": msg.TeamID, "channel": msg.Channel})

	token := h.token(ctx, msg.TeamID, log)
	if token == "" {
		log.Error("no bot token for team, dropping message", nil)
		return
	}

	reply, _ := h.processor.Process(ctx, msg)
	if reply == "" {
		return
	}
	if err := h.poster.Post(ctx, token, msg.Channel, msg.ThreadRef, reply); err != nil {
		log.Error("failed to post slack reply", map[string]interface{}{"error": err.Error()})
		return
	}
	log.Info("slack reply posted", nil)
}

func (h *Handler) token(ctx context.Context, teamID string, log logger.Logger) string {
	if h.tokens != nil {
		token, err := h.tokens.SlackToken(ctx, teamID)
		if err == nil && token != "" {
			return token
		}
		if err != nil {
			log.Warn("slack token lookup failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return h.config.DefaultToken
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"connected":  false,
		"service":    Source,
		"configured": h.config.SigningSecret != "",
	}
	if teamID := r.URL.Query().Get("team_id"); teamID != "" {
		resp["team_id"] = teamID
		if h.tokens != nil {
			token, err := h.tokens.SlackToken(r.Context(), teamID)
			resp["connected"] = err == nil && token != ""
			if err != nil && !errors.Is(err, installations.ErrNotInstalled) {
				resp["error"] = err.Error()
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
