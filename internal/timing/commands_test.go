package timing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandSequence(t *testing.T) {
	plan, err := ComputeTimings([]int{12, 4, 11, 3})
	require.NoError(t, err)

	seq := BuildCommandSequence(plan)
	require.Len(t, seq, NumPhases)
	assert.Equal(t, plan.TotalCycle, seq.TotalDuration())

	wantDurations := []int{55, 3, 2, 20, 3, 2}
	for i, c := range seq {
		assert.Equal(t, wantDurations[i], c.Duration, "phase %d", i+1)
	}

	assert.Equal(t, Green, seq[0].NS)
	assert.Equal(t, Red, seq[0].EW)
	assert.Equal(t, Yellow, seq[1].NS)
	assert.Equal(t, Red, seq[2].All)
	assert.Equal(t, Green, seq[3].EW)
	assert.Equal(t, Yellow, seq[4].EW)
	assert.Equal(t, Red, seq[5].All)
}

func TestBuildCommandSequence_SumsToCycleForEveryBucket(t *testing.T) {
	for _, counts := range [][]int{{12, 4, 11, 3}, {10, 5, 10, 5}, {9, 3, 0, 3}, {5, 5, 5, 5}, {0, 9, 0, 1}} {
		p, err := ComputeTimings(counts)
		require.NoError(t, err)
		assert.Equal(t, p.TotalCycle, BuildCommandSequence(p).TotalDuration(), "counts %v", counts)
	}
}

func TestCommandSequence_JSON(t *testing.T) {
	seq := BuildCommandSequence(Plan{NSGreen: 40, EWGreen: 30, YellowTime: 3, AllRedTime: 2, TotalCycle: 80})

	data, err := json.Marshal(seq)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, NumPhases)

	assert.Equal(t, "GREEN", raw["phase1"]["ns"])
	assert.Equal(t, "RED", raw["phase1"]["ew"])
	assert.Equal(t, float64(40), raw["phase1"]["duration"])
	assert.Equal(t, "RED", raw["phase3"]["all"])
	assert.NotContains(t, raw["phase3"], "ns")
	assert.Equal(t, "East/West green phase", raw["phase4"]["description"])

	var decoded CommandSequence
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, seq, decoded)
}

func TestCommandSequence_UnmarshalMissingPhase(t *testing.T) {
	var seq CommandSequence
	err := json.Unmarshal([]byte(`{"phase1":{"duration":1,"description":"x"}}`), &seq)
	assert.Error(t, err)
}
