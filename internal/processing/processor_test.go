package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadflow/internal/agent"
	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/common/metrics"
	"leadflow/internal/flow"
	"leadflow/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Log(ctx context.Context, eventType string, data map[string]interface{}, status models.EventStatus, teamID string) (int64, error) {
	args := m.Called(ctx, eventType, data, status, teamID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSink) Update(ctx context.Context, id int64, status models.EventStatus, errorMessage string, data map[string]interface{}) error {
	args := m.Called(ctx, id, status, errorMessage, data)
	return args.Error(0)
}

type staticFlows map[string]flow.Config

func (s staticFlows) Resolve(teamID string) flow.Config {
	if cfg, ok := s[teamID]; ok {
		return cfg
	}
	return s[flow.DefaultTeam]
}

func script(replies ...string) agent.Planner {
	i := 0
	return agent.PlannerFunc(func(ctx context.Context, system, user string) (string, error) {
		if i >= len(replies) {
			return "", errors.New("script exhausted")
		}
		i++
		return replies[i-1], nil
	})
}

func newTestRegistry(t *testing.T) *capability.Registry {
	reg := capability.NewRegistry(logger.NewTestLogger(t))
	reg.MustRegister(
		capability.Capability{
			Name:        capability.ExtractLeadInfo,
			Kind:        capability.KindExtraction,
			InputSchema: capability.MessageInputSchema(),
			Body: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return models.LeadInfo{FirstName: "Sarah", Location: "New Cairo", TeamID: "T1"}, nil
			},
		},
		capability.Capability{
			Name:        capability.SendGmailNotification,
			Kind:        capability.KindNotification,
			Aliases:     []string{"gmail"},
			InputSchema: capability.NotificationInputSchema(),
			Body: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return "📧 Email notification sent successfully", nil
			},
		},
	)
	return reg
}

var flows = staticFlows{flow.DefaultTeam: {NotificationChannel: "gmail"}}

func TestProcess_Success(t *testing.T) {
	sink := new(MockSink)
	sink.On("Log", mock.Anything, models.EventTypeLeadProcessing, mock.MatchedBy(func(d map[string]interface{}) bool {
		return d["message"] == "hi" && d["source"] == "slack"
	}), models.EventStatusProcessing, "T1").Return(int64(11), nil)
	sink.On("Update", mock.Anything, int64(11), models.EventStatusSuccess, "", mock.MatchedBy(func(d map[string]interface{}) bool {
		lead := d["lead_info"].(map[string]interface{})
		steps := d["steps"].([]map[string]interface{})
		return lead["first_name"] == "Sarah" && len(steps) == 2 && d["flow"] != nil
	})).Return(nil)

	before := testutil.ToFloat64(metrics.AgentRuns.WithLabelValues("T1", metrics.StatusSuccess))

	p := NewProcessor(newTestRegistry(t), flows, script(
		`{"action":"call","tool":"extract_lead_info","arguments":{}}`,
		`{"action":"call","tool":"gmail","arguments":{}}`,
		`{"action":"final","response":"✅ Lead processed."}`,
	), sink, Options{Logger: logger.NewTestLogger(t)})

	reply, err := p.Process(context.Background(), Message{Text: "hi", TeamID: "T1", Source: "slack"})
	require.NoError(t, err)
	assert.Equal(t, "✅ Lead processed.", reply)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AgentRuns.WithLabelValues("T1", metrics.StatusSuccess)))
	sink.AssertExpectations(t)
}

func TestProcess_FailureApologizes(t *testing.T) {
	sink := new(MockSink)
	sink.On("Log", mock.Anything, mock.Anything, mock.Anything, models.EventStatusProcessing, flow.DefaultTeam).Return(int64(5), nil)
	sink.On("Update", mock.Anything, int64(5), models.EventStatusError, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	}), mock.Anything).Return(nil)

	p := NewProcessor(newTestRegistry(t), flows, script("not json at all"), sink, Options{Logger: logger.NewTestLogger(t)})

	out := p.Run(context.Background(), Message{Text: "hi"})
	assert.False(t, out.Success())
	assert.ErrorIs(t, out.Err, agent.ErrPlanningFailed)
	assert.Equal(t, Apology, out.Reply)
	assert.Equal(t, int64(5), out.EventID)
	require.NotNil(t, out.Result)
	sink.AssertExpectations(t)
}

func TestProcess_EventLogDownStillRuns(t *testing.T) {
	sink := new(MockSink)
	sink.On("Log", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))

	p := NewProcessor(newTestRegistry(t), flows, script(`{"action":"final","response":"ok"}`), sink, Options{Logger: logger.NewTestLogger(t)})

	reply, err := p.Process(context.Background(), Message{Text: "hi", TeamID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	sink.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_RunTimeout(t *testing.T) {
	slow := agent.PlannerFunc(func(ctx context.Context, system, user string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := NewProcessor(newTestRegistry(t), flows, slow, nil, Options{
		RunTimeout: 20 * time.Millisecond,
		Logger:     logger.NewTestLogger(t),
	})

	reply, err := p.Process(context.Background(), Message{Text: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Apology, reply)
}

func TestProcess_BuildFailure(t *testing.T) {
	reg := capability.NewRegistry(logger.NewTestLogger(t))
	p := NewProcessor(reg, flows, script(), nil, Options{Logger: logger.NewTestLogger(t)})

	out := p.Run(context.Background(), Message{Text: "hi"})
	assert.Error(t, out.Err)
	assert.Nil(t, out.Result)
	assert.Equal(t, Apology, out.Reply)
}

func TestProcess_RunIDCorrelatesEvent(t *testing.T) {
	var started, finished string
	sink := new(MockSink)
	sink.On("Log", mock.Anything, mock.Anything, mock.MatchedBy(func(d map[string]interface{}) bool {
		started, _ = d["run_id"].(string)
		return true
	}), mock.Anything, mock.Anything).Return(int64(3), nil)
	sink.On("Update", mock.Anything, int64(3), models.EventStatusSuccess, "", mock.MatchedBy(func(d map[string]interface{}) bool {
		finished, _ = d["run_id"].(string)
		return true
	})).Return(nil)

	p := NewProcessor(newTestRegistry(t), flows, script(`{"action":"final","response":"ok"}`), sink, Options{Logger: logger.NewTestLogger(t)})

	require.True(t, p.Run(context.Background(), Message{Text: "hi"}).Success())
	assert.Len(t, started, 36)
	assert.Equal(t, started, finished)

	require.True(t, p.Run(context.Background(), Message{Text: "hi", RunID: "job-2251799813685249"}).Success())
	assert.Equal(t, "job-2251799813685249", started)
}
