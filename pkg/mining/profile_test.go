package mining

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfile(t *testing.T) {
	// 2025-03-10 is a Monday
	stream := commands("s1", baseTime, time.Hour, "git status", "git status", "ls", "git status")
	stream[2].Degraded = true
	stream = append(stream, NormalizedCommand{Signature: "ls"}) // no timestamp

	profile := BuildProfile(stream, 2)

	assert.Equal(t, 5, profile.TotalCommands)
	assert.Equal(t, 2, profile.UniqueSignatures)
	assert.InDelta(t, 0.4, profile.Diversity, 1e-12)
	assert.Equal(t, 2, profile.Sessions)
	assert.Equal(t, 1, profile.DegradedCount)

	require.Len(t, profile.MostFrequent, 2)
	assert.Equal(t, SignatureCount{Signature: "git status", Count: 3}, profile.MostFrequent[0])
	assert.Equal(t, SignatureCount{Signature: "ls", Count: 2}, profile.MostFrequent[1])

	assert.Equal(t, 1, profile.HourlyDistribution[9])
	assert.Equal(t, 1, profile.HourlyDistribution[12])
	assert.Equal(t, map[string]int{"Monday": 4}, profile.DailyDistribution)
}

func TestBuildProfile_Empty(t *testing.T) {
	profile := BuildProfile(nil, 0)

	assert.Zero(t, profile.TotalCommands)
	assert.Zero(t, profile.Diversity)
	assert.Empty(t, profile.MostFrequent)
	assert.NotNil(t, profile.DailyDistribution)
}

func TestBuildProfile_MostFrequentIsBounded(t *testing.T) {
	var sigs []string
	for i := range 15 {
		sigs = append(sigs, string(rune('a'+i)))
	}
	profile := BuildProfile(commands("s1", baseTime, time.Second, sigs...), 1)

	require.Len(t, profile.MostFrequent, mostFrequentLimit)
	assert.Equal(t, "a", profile.MostFrequent[0].Signature)
}
