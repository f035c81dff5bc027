package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityValid(t *testing.T) {
	for _, severity := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		assert.True(t, severity.Valid(), "%s should be valid", severity)
	}
	assert.False(t, Severity("unknown").Valid())
	assert.False(t, Severity("catastrophic").Valid())
	assert.False(t, Severity("").Valid())
}

func TestVehicleTypeValid(t *testing.T) {
	assert.True(t, VehicleTypeSedan.Valid())
	assert.True(t, VehicleTypeOther.Valid())
	assert.False(t, VehicleType("spaceship").Valid())
	assert.False(t, VehicleType("").Valid())
}
