package extractleadinfo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leadflow/internal/capability"
	"leadflow/internal/common/logger"
	"leadflow/internal/llm"
	"leadflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T, reply string, err error) (*Handler, *[]string) {
	var prompts []string
	inferer := llm.InferFunc(func(ctx context.Context, system, user string) (string, error) {
		prompts = append(prompts, user)
		return reply, err
	})
	h, herr := NewHandler(&Config{Enabled: true, Timeout: time.Second}, inferer, logger.NewTestLogger(t))
	require.NoError(t, herr)
	return h, &prompts
}

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  models.LeadInfo
	}{
		{
			name:  "plain JSON",
			reply: `{"first_name":"Sarah","last_name":"","phone":"01234567890","location":"New Cairo","property_type":"villa","bedrooms":"three","budget":"8M"}`,
			want: models.LeadInfo{
				FirstName: "Sarah", Phone: "01234567890", Location: "New Cairo",
				PropertyType: "villa", Bedrooms: "3", Budget: 8_000_000, TeamID: "T1",
			},
		},
		{
			name:  "fenced with numeric fields",
			reply: "```json\n{\"first_name\":\"Omar\",\"last_name\":\"Ali\",\"phone\":1234567890,\"location\":\"Zayed\",\"property_type\":\"apartment\",\"bedrooms\":2,\"budget\":2500000}\n```",
			want: models.LeadInfo{
				FirstName: "Omar", LastName: "Ali", Phone: "1234567890", Location: "Zayed",
				PropertyType: "apartment", Bedrooms: "2", Budget: 2_500_000, TeamID: "T1",
			},
		},
		{
			name:  "prose and a stray brace",
			reply: "Here you go } {\"first_name\":\"Mona\",\"budget\":\"750K\"} hope that helps",
			want:  models.LeadInfo{FirstName: "Mona", Budget: 750_000, TeamID: "T1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, prompts := createTestHandler(t, tt.reply, nil)
			out, err := h.Execute(context.Background(), &Input{Message: "Sarah wants a villa", TeamID: "T1"})
			require.NoError(t, err)
			assert.False(t, out.Degraded)
			assert.Equal(t, tt.want, out.Lead)
			require.Len(t, *prompts, 1)
			assert.Contains(t, (*prompts)[0], `Message: "Sarah wants a villa"`)
		})
	}
}

func TestHandler_Execute_DegradesToSkeleton(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "model error", err: errors.New("503 from upstream")},
		{name: "timeout", err: context.DeadlineExceeded},
		{name: "no JSON", reply: "I could not find a lead in that message."},
		{name: "truncated JSON", reply: `{"first_name":"Sarah"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := createTestHandler(t, tt.reply, tt.err)
			out, err := h.Execute(context.Background(), &Input{Message: "hello", TeamID: "T9"})
			require.NoError(t, err)
			assert.True(t, out.Degraded)
			assert.Equal(t, models.Skeleton("T9"), out.Lead)

			m := out.Lead.ToMap()
			for _, key := range leadKeys {
				assert.Contains(t, m, key)
			}
			assert.Equal(t, "T9", m["team_id"])
			assert.Equal(t, int64(0), m["budget"])
		})
	}
}

func TestHandler_Execute_EmptyMessage(t *testing.T) {
	h, prompts := createTestHandler(t, "{}", nil)
	_, err := h.Execute(context.Background(), &Input{Message: "   "})
	assert.Error(t, err)
	assert.Empty(t, *prompts)
}

func TestHandler_Capability(t *testing.T) {
	h, _ := createTestHandler(t, `{"first_name":"Sarah","budget":"5.5M"}`, nil)
	c := h.Capability()
	assert.Equal(t, capability.ExtractLeadInfo, c.Name)
	assert.Equal(t, capability.KindExtraction, c.Kind)

	out, err := c.Invoke(context.Background(), map[string]interface{}{"message": "Sarah, 5.5M", "team_id": "T1"})
	require.NoError(t, err)
	lead, ok := out.(models.LeadInfo)
	require.True(t, ok)
	assert.Equal(t, int64(5_500_000), lead.Budget)
	assert.Equal(t, "T1", lead.TeamID)

	_, err = c.Invoke(context.Background(), map[string]interface{}{})
	assert.ErrorIs(t, err, capability.ErrInvalidArguments)
}

func TestUserPrompt_ListsEveryKey(t *testing.T) {
	prompt := userPrompt("x")
	assert.True(t, strings.HasPrefix(prompt, "Extract JSON with exactly these keys: first_name, last_name, phone, location, property_type, bedrooms, budget."))
}

func TestNewHandler_RequiresModel(t *testing.T) {
	_, err := NewHandler(DefaultConfig(), nil, logger.NewNoOpLogger())
	assert.Error(t, err)
	_, err = NewHandler(&Config{}, llm.InferFunc(nil), logger.NewNoOpLogger())
	assert.Error(t, err)
}
