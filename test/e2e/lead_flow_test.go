// Package e2e drives a Slack message through the whole agent: ingress,
// planner loop, catalog, CRM, notification and the event log.
package e2e

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/agent"
	"leadflow/internal/common/config"
	"leadflow/internal/common/logger"
	"leadflow/internal/eventlog"
	"leadflow/internal/flow"
	slackingress "leadflow/internal/ingress/slack"
	"leadflow/internal/installations"
	"leadflow/internal/llm"
	"leadflow/internal/models"
	"leadflow/internal/processing"
	"leadflow/internal/workers"
)

const (
	signingSecret = "e2e-signing-secret"
	teamID        = "TSARAH"
	sarahMessage  = "Sarah wants a villa in New Cairo, budget 8M, phone 01234567890"
	finalResponse = "✅ Sarah's lead was saved to Zoho CRM and matched with Palm Hills Villas."
)

var eventRowColumns = []string{"id", "event_type", "event_data", "status", "error_message", "team_id", "created_at", "updated_at"}

type post struct {
	token, channel, thread, text string
}

type recordingPoster struct {
	posts chan post
}

func (p *recordingPoster) Post(ctx context.Context, token, channel, threadTS, text string) error {
	p.posts <- post{token, channel, threadTS, text}
	return nil
}

// scriptedPlanner replays fixed planner turns and keeps the prompts it saw.
type scriptedPlanner struct {
	mu      sync.Mutex
	turns   []string
	prompts []string
}

func (s *scriptedPlanner) Plan(ctx context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.prompts)
	s.prompts = append(s.prompts, user)
	if i >= len(s.turns) {
		return "", fmt.Errorf("planner called %d times, only %d turns scripted", i+1, len(s.turns))
	}
	return s.turns[i], nil
}

func (s *scriptedPlanner) prompt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.prompts) {
		return ""
	}
	return s.prompts[i]
}

func eventRow(status models.EventStatus, data map[string]interface{}) *sqlmock.Rows {
	payload, _ := json.Marshal(data)
	now := time.Now()
	return sqlmock.NewRows(eventRowColumns).
		AddRow(int64(1), models.EventTypeLeadProcessing, payload, string(status), "", teamID, now, now)
}

func signedRequest(t *testing.T, url, body string) *http.Request {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	fmt.Fprintf(mac, "v0:%s:%s", stamp, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", stamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestSarahLeadEndToEnd(t *testing.T) {
	log := logger.NewTestLogger(t)

	// Zoho CRM
	zohoRequests := make(chan map[string]interface{}, 1)
	zohoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v2/Leads", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken zoho-token", r.Header.Get("Authorization"))
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		zohoRequests <- body
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"code":"SUCCESS","details":{"id":"5550001"},"message":"record added","status":"success"}]}`)
	}))
	defer zohoServer.Close()

	// Postgres: Slack token, event log, catalog, Zoho token, event log.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM slack_installations WHERE team_id = \$1`).
		WithArgs(teamID).
		WillReturnRows(sqlmock.NewRows([]string{"team_id", "team_name", "access_token", "bot_user_id"}).
			AddRow(teamID, "Sarah Realty", "xoxb-sarah", "UBOT"))
	mock.ExpectQuery(`INSERT INTO event_logs`).
		WithArgs(models.EventTypeLeadProcessing, sqlmock.AnyArg(), string(models.EventStatusProcessing), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(eventRow(models.EventStatusProcessing, map[string]interface{}{"message": sarahMessage}))
	mock.ExpectQuery(`FROM projects WHERE location ILIKE \$1 AND property_type ILIKE \$2 AND min_price <= \$3 AND max_price >= \$4`).
		WithArgs("%New Cairo%", "%villa%", int64(8200000), int64(7800000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "location", "min_price", "max_price", "min_bedrooms", "max_bedrooms", "property_type"}).
			AddRow("p-1", "Palm Hills Villas", "New Cairo", int64(7800000), int64(8200000), 3, 4, "villa"))
	mock.ExpectQuery(`FROM zoho_installations WHERE team_id = \$1`).
		WithArgs(teamID).
		WillReturnRows(sqlmock.NewRows([]string{"team_id", "access_token", "refresh_token", "api_domain", "expires_at"}).
			AddRow(teamID, "zoho-token", "", zohoServer.URL, nil))
	mock.ExpectQuery(`UPDATE event_logs SET`).
		WithArgs(int64(1), string(models.EventStatusSuccess), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(eventRow(models.EventStatusSuccess, map[string]interface{}{"response": finalResponse}))

	// Extraction model
	extractor := llm.InferFunc(func(ctx context.Context, system, user string) (string, error) {
		assert.Contains(t, user, sarahMessage)
		return "```json\n" + `{"first_name":"Sarah","last_name":"","phone":"01234567890","location":"New Cairo","property_type":"villa","bedrooms":"","budget":"8M"}` + "\n```", nil
	})

	cfg := &config.Config{}
	store := installations.NewStore(db, nil, installations.Options{Logger: log})
	set, err := workers.NewRegistry(workers.Dependencies{
		Config:        cfg,
		Logger:        log,
		LLM:           extractor,
		DB:            db,
		Installations: store,
	})
	require.NoError(t, err)

	resolver, err := flow.NewResolver(flow.BuildTable(map[string]config.FlowEntry{
		teamID: {DataSource: "postgresql", CRM: "zoho", NotificationChannel: "outlook"},
	}, nil), log)
	require.NoError(t, err)
	require.Empty(t, set.Registry.CheckFlows(map[string]flow.Config{teamID: resolver.Resolve(teamID)}))

	planner := &scriptedPlanner{turns: []string{
		`{"action":"call","tool":"extract_lead_info","arguments":{"message":"` + sarahMessage + `"}}`,
		`{"action":"call","tool":"fetch_from_postgres","arguments":{}}`,
		`{"action":"call","tool":"zoho","arguments":{}}`,
		`{"action":"call","tool":"send_outlook_notification","arguments":{}}`,
		`{"action":"final","response":"` + finalResponse + `"}`,
	}}

	hub := eventlog.NewHub(log)
	defer hub.Close()
	events := eventlog.NewService(eventlog.NewStore(db), hub, eventlog.DefaultOptions(), log)
	processor := processing.NewProcessor(set.Registry, resolver, agent.Planner(planner), events, processing.Options{Logger: log})

	dedup, err := slackingress.NewDeduper(0, 0, nil, log)
	require.NoError(t, err)
	pool := slackingress.NewPool(1, 4)
	poster := &recordingPoster{posts: make(chan post, 1)}
	handler := slackingress.NewHandler(slackingress.Config{
		SigningSecret: signingSecret,
		JobTimeout:    30 * time.Second,
	}, dedup, store, processor, poster, pool, log)

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	body := `{"type":"event_callback","team_id":"` + teamID + `","event_id":"EvSARAH1","event_time":1700000000,` +
		`"event":{"type":"message","user":"U123","text":"` + sarahMessage + `","channel":"C042","ts":"1700000000.000100"}}`

	resp, err := http.DefaultClient.Do(signedRequest(t, server.URL+"/slack/events", body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply post
	select {
	case reply = <-poster.posts:
	case <-time.After(10 * time.Second):
		t.Fatal("no slack reply was posted")
	}

	assert.Equal(t, "xoxb-sarah", reply.token)
	assert.Equal(t, "C042", reply.channel)
	assert.Equal(t, "1700000000.000100", reply.thread)
	assert.Equal(t, finalResponse, reply.text)

	// The lead reached Zoho fully enriched.
	select {
	case sent := <-zohoRequests:
		records, ok := sent["data"].([]interface{})
		require.True(t, ok)
		require.Len(t, records, 1)
		record := records[0].(map[string]interface{})
		assert.Equal(t, "Sarah", record["First_Name"])
		assert.Equal(t, "01234567890", record["Phone"])
		assert.Equal(t, "New Cairo", record["City"])
		assert.Contains(t, record["Description"], "8000000")
		assert.Contains(t, record["Description"], "Palm Hills Villas")
	default:
		t.Fatal("zoho was not called")
	}

	// The planner saw the enriched lead before the CRM step.
	assert.Contains(t, planner.prompt(2), "Palm Hills Villas")
	assert.Contains(t, planner.prompt(2), "8000000")

	live := events.Live(10, teamID)
	require.Len(t, live, 1)
	assert.Equal(t, models.EventStatusSuccess, live[0].Status)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))
	assert.NoError(t, mock.ExpectationsWereMet())

	// A Slack retry of the same event is not processed twice.
	resp, err = http.DefaultClient.Do(signedRequest(t, server.URL+"/slack/events", body))
	require.NoError(t, err)
	resp.Body.Close()
	select {
	case <-poster.posts:
		t.Fatal("duplicate event was processed")
	case <-time.After(200 * time.Millisecond):
	}
}
