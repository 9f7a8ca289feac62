package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	assert.Equal(t, "/dev/ttyACM0", cfg.Device)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Device: "COM3", ReadTimeout: -1}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Zero(t, cfg.ReadTimeout)

	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoDevice)
}
