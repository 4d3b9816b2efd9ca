package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "json",
		InputQueueSize:      4096,
		BroadcastFanout:     3,
		BroadcastTargetOps:  20,
		BroadcastBatchDelay: "200ms",
		BroadcastAckDelay:   "2s",
		BroadcastMaxRate:    0,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	require.Error(t, c.Validate())
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	c := validConfig()
	c.LogFormat = "xml"
	require.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveFanout(t *testing.T) {
	c := validConfig()
	c.BroadcastFanout = 0
	require.Error(t, c.Validate())
}

func TestValidateRejectsNegativeMaxRate(t *testing.T) {
	c := validConfig()
	c.BroadcastMaxRate = -1
	require.Error(t, c.Validate())
}
