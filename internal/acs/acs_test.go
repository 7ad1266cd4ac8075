package acs

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `[
["B01003_001E","B03003_003E","state","county","tract","block group"],
["1200","300","13","121","000100","1"],
["0","0","13","121","000100","2"],
["850","85","13","121","000200","1"]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
}

func baseRequest() Request {
	return Request{
		Year:        2019,
		State:       "13",
		Counties:    []string{"121"},
		TotalVar:    "B01003_001E",
		SubgroupVar: "B03003_003E",
	}
}

func TestBlockGroups(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/2019/acs/acs5", r.URL.Path)
		w.Write([]byte(sampleResponse))
	})

	rows, err := client.BlockGroups(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Contains(t, gotQuery, "block+group")
	assert.Contains(t, gotQuery, "state%3A13")
	assert.Contains(t, gotQuery, "county%3A121")

	assert.Equal(t, "131210001001", rows[0].GEOID)
	assert.Equal(t, 1200, rows[0].TotalPop)
	assert.Equal(t, 300, rows[0].SubgroupPop)
	assert.InDelta(t, 25.0, rows[0].PctSubgroup, 1e-9)

	// Zero population: percentage is undefined, not a crash.
	assert.True(t, math.IsNaN(rows[1].PctSubgroup))

	assert.InDelta(t, 10.0, rows[2].PctSubgroup, 1e-9)
}

func TestBlockGroups_PercentageBounds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleResponse))
	})

	rows, err := client.BlockGroups(context.Background(), baseRequest())
	require.NoError(t, err)
	for _, row := range rows {
		if row.TotalPop > 0 {
			assert.GreaterOrEqual(t, row.PctSubgroup, 0.0)
			assert.LessOrEqual(t, row.PctSubgroup, 100.0)
		}
	}
}

func TestBlockGroups_UpstreamErrorIsFatal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "error: unknown variable 'B99999_001E'", http.StatusBadRequest)
	})

	_, err := client.BlockGroups(context.Background(), baseRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variable")
}

func TestBlockGroups_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	})

	_, err := client.BlockGroups(context.Background(), baseRequest())
	require.Error(t, err)
}

func TestBlockGroups_MissingGeographyColumn(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[["B01003_001E","B03003_003E","state"],["1","1","13"]]`))
	})

	_, err := client.BlockGroups(context.Background(), baseRequest())
	require.Error(t, err)
}

func TestBlockGroups_ValidatesRequest(t *testing.T) {
	client := NewClient()

	_, err := client.BlockGroups(context.Background(), Request{})
	require.Error(t, err)

	req := baseRequest()
	req.Counties = nil
	_, err = client.BlockGroups(context.Background(), req)
	require.Error(t, err)
}
