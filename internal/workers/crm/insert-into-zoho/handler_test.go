package insertintozoho

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/installations"
	"leadflow/internal/models"
)

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) ZohoInstallation(ctx context.Context, teamID string) (*installations.ZohoInstallation, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*installations.ZohoInstallation), args.Error(1)
}

func sarah() models.LeadInfo {
	return models.LeadInfo{
		FirstName: "Sarah", Phone: "01234567890", Location: "New Cairo", PropertyType: "villa",
		Bedrooms: "3", Budget: 8_000_000, TeamID: "T1", MatchedProjects: []string{"Palm Hills", "Mivida"},
	}
}

type captured struct {
	auth string
	path string
	body map[string][]map[string]interface{}
}

func newZohoServer(t *testing.T, status int, reply string, got *captured) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createTestHandler(t *testing.T, tokens TokenSource) *Handler {
	h, err := NewHandler(&Config{Timeout: time.Second}, tokens, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

func TestHandler_Insert_Success(t *testing.T) {
	var got captured
	srv := newZohoServer(t, http.StatusCreated,
		`{"data":[{"code":"SUCCESS","details":{"id":"5725767000000524157"},"message":"record added","status":"success"}]}`, &got)

	tokens := new(MockTokenSource)
	tokens.On("ZohoInstallation", mock.Anything, "T1").
		Return(&installations.ZohoInstallation{TeamID: "T1", AccessToken: "tok", APIDomain: srv.URL}, nil)

	result := createTestHandler(t, tokens).Insert(context.Background(), "T1", sarah())

	assert.True(t, result.Success)
	assert.Equal(t, MsgInserted, result.Message)
	assert.Equal(t, Provider, result.Provider)
	assert.Equal(t, "5725767000000524157", result.RecordID)
	assert.NotNil(t, result.RawResponse)

	assert.Equal(t, "Zoho-oauthtoken tok", got.auth)
	assert.Equal(t, "/crm/v2/Leads", got.path)
	require.Len(t, got.body["data"], 1)
	record := got.body["data"][0]
	assert.Equal(t, "Sarah", record["Last_Name"])
	assert.Equal(t, "Sarah", record["First_Name"])
	assert.Equal(t, "New Cairo", record["City"])
	assert.Equal(t, "Slack Bot", record["Lead_Source"])
	assert.Equal(t, "Looking for a 3 bedroom villa with budget 8000000.\nMatched Projects: Palm Hills, Mivida", record["Description"])
	tokens.AssertExpectations(t)
}

func TestHandler_Insert_Failures(t *testing.T) {
	tests := []struct {
		name    string
		teamID  string
		setup   func(t *testing.T, tokens *MockTokenSource)
		wantMsg string
	}{
		{
			name:    "missing team id",
			teamID:  "",
			setup:   func(t *testing.T, tokens *MockTokenSource) {},
			wantMsg: MsgMissingTeamID,
		},
		{
			name:   "not installed",
			teamID: "T1",
			setup: func(t *testing.T, tokens *MockTokenSource) {
				tokens.On("ZohoInstallation", mock.Anything, "T1").
					Return(nil, fmt.Errorf("%w: no zoho installation", installations.ErrNotInstalled))
			},
			wantMsg: MsgNotConnected,
		},
		{
			name:   "token lookup error",
			teamID: "T1",
			setup: func(t *testing.T, tokens *MockTokenSource) {
				tokens.On("ZohoInstallation", mock.Anything, "T1").Return(nil, errors.New("db down"))
			},
			wantMsg: MsgInternalError,
		},
		{
			name:   "zoho rejects the record",
			teamID: "T1",
			setup: func(t *testing.T, tokens *MockTokenSource) {
				var got captured
				srv := newZohoServer(t, http.StatusAccepted,
					`{"data":[{"code":"MANDATORY_NOT_FOUND","details":{},"message":"required field not found","status":"error"}]}`, &got)
				tokens.On("ZohoInstallation", mock.Anything, "T1").
					Return(&installations.ZohoInstallation{AccessToken: "tok", APIDomain: srv.URL}, nil)
			},
			wantMsg: MsgInsertFailed,
		},
		{
			name:   "invalid token",
			teamID: "T1",
			setup: func(t *testing.T, tokens *MockTokenSource) {
				var got captured
				srv := newZohoServer(t, http.StatusUnauthorized, `{"code":"INVALID_TOKEN","status":"error"}`, &got)
				tokens.On("ZohoInstallation", mock.Anything, "T1").
					Return(&installations.ZohoInstallation{AccessToken: "tok", APIDomain: srv.URL}, nil)
			},
			wantMsg: MsgInsertFailed,
		},
		{
			name:   "transport error",
			teamID: "T1",
			setup: func(t *testing.T, tokens *MockTokenSource) {
				tokens.On("ZohoInstallation", mock.Anything, "T1").
					Return(&installations.ZohoInstallation{AccessToken: "tok", APIDomain: "http://127.0.0.1:1"}, nil)
			},
			wantMsg: MsgInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := new(MockTokenSource)
			tt.setup(t, tokens)

			result := createTestHandler(t, tokens).Insert(context.Background(), tt.teamID, sarah())
			assert.False(t, result.Success)
			assert.Equal(t, tt.wantMsg, result.Message)
			assert.Equal(t, Provider, result.Provider)
			tokens.AssertExpectations(t)
		})
	}
}

func TestHandler_Insert_NonJSONReplyKeepsBody(t *testing.T) {
	var got captured
	srv := newZohoServer(t, http.StatusBadGateway, "<html>bad gateway</html>", &got)

	tokens := new(MockTokenSource)
	tokens.On("ZohoInstallation", mock.Anything, "T1").
		Return(&installations.ZohoInstallation{AccessToken: "tok", APIDomain: srv.URL}, nil)

	result := createTestHandler(t, tokens).Insert(context.Background(), "T1", sarah())

	assert.False(t, result.Success)
	assert.Equal(t, MsgInternalError, result.Message)
	assert.Equal(t, "<html>bad gateway</html>", result.RawResponse)
	tokens.AssertExpectations(t)
}

func TestBuildLead_Defaults(t *testing.T) {
	lead := BuildLead(models.LeadInfo{})
	assert.Equal(t, "Unknown", lead.LastName)
	assert.Equal(t, "Looking for a  bedroom  with budget .\nMatched Projects: ", lead.Description)

	full := BuildLead(models.LeadInfo{FirstName: "Sarah", LastName: "Adel"})
	assert.Equal(t, "Sarah Adel", full.LastName)
}

func TestHandler_Capability(t *testing.T) {
	tokens := new(MockTokenSource)
	c := createTestHandler(t, tokens).Capability()
	assert.Equal(t, capability.KindCRM, c.Kind)
	assert.Equal(t, []string{"zoho"}, c.Aliases)

	out, err := c.Invoke(context.Background(), map[string]interface{}{
		"lead_info": map[string]interface{}{"first_name": "Sarah"},
	})
	require.NoError(t, err)
	result := out.(models.CRMResult)
	assert.False(t, result.Success)
	assert.Equal(t, MsgMissingTeamID, result.Message)
}

func TestNewHandler_RequiresTokenSource(t *testing.T) {
	_, err := NewHandler(DefaultConfig(), nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}
