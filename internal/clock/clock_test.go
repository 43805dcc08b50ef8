package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("ART", -3*3600))
	m := NewManual(start)
	assert.Equal(t, time.UTC, m.Now().Location())
	assert.True(t, m.Now().Equal(start))

	m.Advance(90 * time.Second)
	assert.True(t, m.Now().Equal(start.Add(90*time.Second)))

	later := start.Add(time.Hour)
	m.Set(later)
	assert.True(t, m.Now().Equal(later))
}

func TestOrSystem(t *testing.T) {
	assert.IsType(t, System{}, OrSystem(nil))
	m := NewManual(time.Unix(0, 0))
	assert.Same(t, m, OrSystem(m))
}
