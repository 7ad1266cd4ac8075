package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transit-access/internal/checkpoint"
	"github.com/sells-group/transit-access/internal/config"
	"github.com/sells-group/transit-access/internal/transit"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"demographics", "resolve", "export", "render", "run", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "transit-access", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRegionKey(t *testing.T) {
	c := &config.Config{}
	c.Census.State = "13"
	c.Census.Counties = []string{"089", "121"}

	assert.Equal(t, "13:089,121", regionKey(c))
}

func TestCandidateMinutes(t *testing.T) {
	r := transit.Result{
		GEOID: "130890203011",
		Candidates: []transit.CandidateResult{
			{Minutes: 12.5},
			{Err: assert.AnError},
			{Minutes: 45},
		},
	}

	mins := candidateMinutes(r)
	require.Len(t, mins, 3)
	require.NotNil(t, mins[0])
	assert.Equal(t, 12.5, *mins[0])
	assert.Nil(t, mins[1])
	require.NotNil(t, mins[2])
	assert.Equal(t, 45.0, *mins[2])
}

func TestMinimumOf(t *testing.T) {
	v1, v2 := 30.0, 12.0

	min := minimumOf([]*float64{&v1, nil, &v2})
	require.NotNil(t, min)
	assert.Equal(t, 12.0, *min)

	assert.Nil(t, minimumOf([]*float64{nil, nil}))
	assert.Nil(t, minimumOf(nil))
}

func TestFindOrCreateRun_ResumesRunningRun(t *testing.T) {
	ctx := context.Background()
	st, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	departure := time.Date(2020, 2, 4, 9, 0, 0, 0, time.UTC)
	id, err := st.CreateRun(ctx, "13:089,121", departure)
	require.NoError(t, err)

	m := 17.0
	require.NoError(t, st.SaveCandidateTimes(ctx, id, "130890203011", "33.8, -84.3", []*float64{&m}))

	runID, skip, err := findOrCreateRun(ctx, st, "13:089,121", departure)
	require.NoError(t, err)
	assert.Equal(t, id, runID)
	assert.True(t, skip["130890203011"])
}

func TestFindOrCreateRun_NewRunOnDifferentDeparture(t *testing.T) {
	ctx := context.Background()
	st, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	departure := time.Date(2020, 2, 4, 9, 0, 0, 0, time.UTC)
	id, err := st.CreateRun(ctx, "13:089,121", departure)
	require.NoError(t, err)

	runID, skip, err := findOrCreateRun(ctx, st, "13:089,121", departure.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, id, runID)
	assert.Empty(t, skip)
}

func TestFindOrCreateRun_NewRunAfterComplete(t *testing.T) {
	ctx := context.Background()
	st, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	departure := time.Date(2020, 2, 4, 9, 0, 0, 0, time.UTC)
	id, err := st.CreateRun(ctx, "13:089,121", departure)
	require.NoError(t, err)
	require.NoError(t, st.MarkRunComplete(ctx, id))

	runID, skip, err := findOrCreateRun(ctx, st, "13:089,121", departure)
	require.NoError(t, err)
	assert.NotEqual(t, id, runID)
	assert.Empty(t, skip)
}

func TestFormatStatus_NoRun(t *testing.T) {
	var buf bytes.Buffer
	formatStatus(&buf, nil, 0, 0)

	assert.Contains(t, buf.String(), "no runs recorded")
}

func TestFormatStatus_WithRun(t *testing.T) {
	run := &checkpoint.Run{
		ID:        "abc-123",
		Status:    "running",
		Departure: time.Date(2020, 2, 4, 9, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	formatStatus(&buf, run, 1984, 12)

	out := buf.String()
	assert.Contains(t, out, "abc-123")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "2020-02-04 09:00:00")
	assert.Contains(t, out, "1,984")
	assert.Contains(t, out, "12")
}
