package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	s := NewHealthy("transport", "connected")
	assert.True(t, s.Healthy())
	assert.Equal(t, StateHealthy, s.State)
	assert.False(t, s.Timestamp.IsZero())

	assert.Equal(t, StateDegraded, NewDegraded("transport", "reconnecting").State)
	assert.Equal(t, StateUnhealthy, NewUnhealthy("transport", "closed").State)
}

func TestAggregateTakesWorst(t *testing.T) {
	agg := Aggregate("context", []Status{
		NewHealthy("transport", ""),
		NewDegraded("graph", "snapshot incomplete"),
	})
	assert.Equal(t, StateDegraded, agg.State)
	assert.Len(t, agg.SubStatuses, 2)

	agg = Aggregate("context", []Status{
		NewDegraded("graph", ""),
		NewUnhealthy("transport", "closed"),
	})
	assert.Equal(t, StateUnhealthy, agg.State)

	assert.True(t, Aggregate("context", nil).Healthy())
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("transport", "connected")
	m.UpdateDegraded("graph", "catching up")

	s, ok := m.Get("transport")
	require.True(t, ok)
	assert.True(t, s.Healthy())

	overall := m.Overall("context")
	assert.Equal(t, StateDegraded, overall.State)
	require.Len(t, overall.SubStatuses, 2)
	assert.Equal(t, "graph", overall.SubStatuses[0].Component)
	assert.Equal(t, "transport", overall.SubStatuses[1].Component)

	m.UpdateUnhealthy("transport", "connection lost")
	assert.Equal(t, StateUnhealthy, m.Overall("context").State)

	m.Remove("transport")
	_, ok = m.Get("transport")
	assert.False(t, ok)
	assert.Equal(t, StateDegraded, m.Overall("context").State)
}
