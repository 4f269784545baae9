package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeCRMInsertFailed, 3},
		{ErrCodeLLMRequestFailed, 3},
		{ErrCodeQueryTimeout, 2},
		{ErrCodeNotificationSendFailed, 1},
		{ErrCodePlanningFailed, 0},
		{ErrCodeConfiguration, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("non retryable clears retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewConfigurationError("T1", "empty capability list"))
		assert.Equal(t, "CONFIGURATION_ERROR", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
		assert.Equal(t, "T1", bpmn.ErrorVariables["teamId"])
	})

	t.Run("retryable keeps policy retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewCRMInsertFailedError("zoho", fmt.Errorf("502")))
		assert.Equal(t, 3, bpmn.Retries)
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "CRM_INSERT_FAILED", vars["errorCode"])
		assert.Equal(t, true, vars["retryable"])
	})
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", NewPlanningFailedError("no json"))
	std := Normalize(wrapped)
	assert.Equal(t, ErrCodePlanningFailed, std.Code)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AGENT", GetErrorCategory(ErrCodePlanningFailed))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "DEGRADATION", GetErrorCategory(ErrCodeEnrichmentDegraded))
	assert.Equal(t, "EVENT_LOG", GetErrorCategory(ErrCodeEventTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING"))
}

func TestStandardError_Error(t *testing.T) {
	err := NewEventTimeoutError(5)
	require.Error(t, err)
	assert.Equal(t, "EVENT_TIMEOUT: Event timed out after 5 minutes", err.Error())
}
