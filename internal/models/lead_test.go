package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadFromMap_NormalizesFields(t *testing.T) {
	lead := LeadFromMap(map[string]interface{}{
		"first_name":    "Sarah",
		"phone":         float64(1234567890),
		"location":      " New Cairo ",
		"property_type": "villa",
		"bedrooms":      "Three",
		"budget":        "8M",
	})

	assert.Equal(t, "Sarah", lead.FirstName)
	assert.Equal(t, "1234567890", lead.Phone)
	assert.Equal(t, "New Cairo", lead.Location)
	assert.Equal(t, "3", lead.Bedrooms)
	assert.Equal(t, int64(8_000_000), lead.Budget)
	assert.Nil(t, lead.MatchedProjects)
}

func TestLeadInfo_ToMapHasEveryKey(t *testing.T) {
	m := Skeleton("T1").ToMap()
	for _, key := range []string{"first_name", "last_name", "phone", "location", "property_type", "bedrooms", "budget", "team_id"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "matched_projects")
	assert.Equal(t, "T1", m["team_id"])

	enriched := Skeleton("T1")
	enriched.MatchedProjects = []string{}
	assert.Equal(t, []string{}, enriched.ToMap()["matched_projects"])
}

func TestLeadInfo_MergeIsAdditive(t *testing.T) {
	base := LeadInfo{FirstName: "Sarah", Phone: "0123", Budget: 8_000_000, TeamID: "T1"}
	merged := base.Merge(LeadInfo{Location: "New Cairo", MatchedProjects: []string{"Palm Hills"}})

	assert.Equal(t, "Sarah", merged.FirstName)
	assert.Equal(t, "0123", merged.Phone)
	assert.Equal(t, int64(8_000_000), merged.Budget)
	assert.Equal(t, "New Cairo", merged.Location)
	assert.Equal(t, []string{"Palm Hills"}, merged.MatchedProjects)

	again := merged.Merge(LeadInfo{})
	assert.Equal(t, merged, again)
}

func TestLeadInfo_JSONRoundTripAcceptsStringBudget(t *testing.T) {
	var lead LeadInfo
	require.NoError(t, json.Unmarshal([]byte(`{"first_name":"Sarah","budget":"5.5M","bedrooms":2,"crm":{"success":true,"provider":"zoho","record_id":"42"}}`), &lead))

	assert.Equal(t, int64(5_500_000), lead.Budget)
	assert.Equal(t, "2", lead.Bedrooms)
	require.NotNil(t, lead.CRM)
	assert.True(t, lead.CRM.Success)
	assert.Equal(t, "42", lead.CRM.RecordID)

	data, err := json.Marshal(lead)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"budget":5500000`)
}

func TestCatalogQueryFor(t *testing.T) {
	q := CatalogQueryFor(LeadInfo{Location: "New Cairo", Bedrooms: "three", Budget: 100_000}, 200_000, 20)
	assert.Equal(t, 3, q.Bedrooms)

	low, high := q.PriceBounds()
	assert.Equal(t, int64(0), low)
	assert.Equal(t, int64(300_000), high)

	assert.Equal(t, 0, CatalogQueryFor(LeadInfo{Bedrooms: "studio"}, 0, 0).Bedrooms)
}
