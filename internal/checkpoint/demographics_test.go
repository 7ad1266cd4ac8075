package checkpoint

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transit-access/internal/acs"
)

func TestDemographicsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rows := []acs.Demographics{
		{GEOID: "g1", TotalPop: 1000, SubgroupPop: 250},
		{GEOID: "g2", TotalPop: 0, SubgroupPop: 0},
	}
	require.NoError(t, s.SaveDemographics(ctx, rows))

	got, err := s.LoadDemographics(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "g1", got[0].GEOID)
	assert.Equal(t, 1000, got[0].TotalPop)
	assert.InDelta(t, 25.0, got[0].PctSubgroup, 1e-9)

	// Zero population comes back undefined, not zero.
	assert.True(t, math.IsNaN(got[1].PctSubgroup))
}

func TestSaveDemographics_Upserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveDemographics(ctx, []acs.Demographics{{GEOID: "g1", TotalPop: 10, SubgroupPop: 1}}))
	require.NoError(t, s.SaveDemographics(ctx, []acs.Demographics{{GEOID: "g1", TotalPop: 20, SubgroupPop: 2}}))

	got, err := s.LoadDemographics(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 20, got[0].TotalPop)
}
