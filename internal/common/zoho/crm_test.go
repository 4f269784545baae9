package zoho

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLeadsServer(t *testing.T, status int, reply string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateLead_Accepted(t *testing.T) {
	srv := newLeadsServer(t, http.StatusCreated,
		`{"data":[{"code":"SUCCESS","details":{"id":"42"},"message":"record added","status":"success"}]}`)

	resp, raw, err := NewCRMClient(time.Second).CreateLead(context.Background(), srv.URL, "tok", Lead{LastName: "Sarah"})

	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	assert.Equal(t, "42", resp.RecordID())
	assert.IsType(t, map[string]interface{}{}, raw)
}

func TestCreateLead_NonJSONBodyIsReported(t *testing.T) {
	srv := newLeadsServer(t, http.StatusBadGateway, "<html>upstream gateway timeout</html>")

	resp, raw, err := NewCRMClient(time.Second).CreateLead(context.Background(), srv.URL, "tok", Lead{LastName: "Sarah"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream gateway timeout")
	assert.Equal(t, "<html>upstream gateway timeout</html>", raw)
}

func TestCreateLead_UnexpectedShape(t *testing.T) {
	srv := newLeadsServer(t, http.StatusOK, `{"data":"nope"}`)

	resp, raw, err := NewCRMClient(time.Second).CreateLead(context.Background(), srv.URL, "tok", Lead{LastName: "Sarah"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "unexpected response shape")
	assert.Equal(t, map[string]interface{}{"data": "nope"}, raw)
}
