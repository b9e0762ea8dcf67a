package ddconfig_test

import (
	"testing"

	"github.com/kegliz/qplay/qc/dd/ddconfig"
	"github.com/stretchr/testify/assert"
)

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	c := ddconfig.Config{}.WithDefaults()
	assert.Greater(t, c.Workers, 0)
	assert.Greater(t, c.WeightTableMaxSize, 0)
	assert.Greater(t, c.NodeTableMaxSize, 0)
	assert.Greater(t, c.CacheSize, 0)
	assert.Equal(t, 1e-14, c.Tolerance)
	assert.Equal(t, 0.9, c.GCThreshold)
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := ddconfig.Config{Workers: 7, Tolerance: 0.5, CacheSize: 64}.WithDefaults()
	assert.Equal(t, 7, c.Workers)
	assert.Equal(t, 0.5, c.Tolerance)
	assert.Equal(t, 64, c.CacheSize)
}
