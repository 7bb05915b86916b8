package qos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveDepth(t *testing.T) {
	tests := []struct {
		name     string
		profile  Profile
		expected int
	}{
		{"zero depth resolves to default", Profile{History: HistoryKeepLast, Depth: 0}, DefaultDepth},
		{"explicit depth kept", Profile{History: HistoryKeepLast, Depth: 10}, 10},
		{"keep all maps to ceiling", Profile{History: HistoryKeepAll, Depth: 10}, DepthCeiling},
		{"depth clamped to ceiling", Profile{History: HistoryKeepLast, Depth: DepthCeiling + 500}, DepthCeiling},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.profile.EffectiveDepth())
		})
	}
}

func TestIsTransientLocal(t *testing.T) {
	p := Default()
	assert.False(t, p.IsTransientLocal())

	p.Durability = DurabilityTransientLocal
	assert.True(t, p.IsTransientLocal())
}

func TestIsReliable(t *testing.T) {
	p := Default()
	assert.True(t, p.IsReliable())

	p.Reliability = ReliabilitySystemDefault
	assert.True(t, p.IsReliable())

	p.Reliability = ReliabilityBestEffort
	assert.False(t, p.IsReliable())
}

func TestPresets(t *testing.T) {
	def := Default()
	assert.Equal(t, ReliabilityReliable, def.Reliability)
	assert.Equal(t, DurabilityVolatile, def.Durability)
	assert.Equal(t, HistoryKeepLast, def.History)
	assert.Equal(t, 10, def.Depth)

	sensor := SensorData()
	assert.Equal(t, ReliabilityBestEffort, sensor.Reliability)
	assert.Equal(t, 5, sensor.Depth)

	latched := TransientLocal()
	assert.Equal(t, DurabilityTransientLocal, latched.Durability)
	assert.Equal(t, 1, latched.Depth)

	assert.Equal(t, Default(), ServicesDefault())
}
