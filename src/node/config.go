package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters of the node workers.
type Config struct {
	HeartbeatTimeout   time.Duration `mapstructure:"heartbeat"`
	MilestonePeriod    time.Duration `mapstructure:"milestone-period"`
	TipRequestPeriod   time.Duration `mapstructure:"tip-request-period"`
	QueueSize          int           `mapstructure:"queue-size"`
	MinWeightMagnitude int           `mapstructure:"mwm"`
	Logger             *logrus.Logger
}

// NewConfig ...
func NewConfig(heartbeat time.Duration,
	milestonePeriod time.Duration,
	tipRequestPeriod time.Duration,
	queueSize int,
	mwm int,
	logger *logrus.Logger) *Config {

	return &Config{
		HeartbeatTimeout:   heartbeat,
		MilestonePeriod:    milestonePeriod,
		TipRequestPeriod:   tipRequestPeriod,
		QueueSize:          queueSize,
		MinWeightMagnitude: mwm,
		Logger:             logger,
	}
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		HeartbeatTimeout:   10 * time.Millisecond,
		MilestonePeriod:    5 * time.Second,
		TipRequestPeriod:   5 * time.Second,
		QueueSize:          1000,
		MinWeightMagnitude: model.MinWeightMagnitude,
		Logger:             logger,
	}
}

// TestConfig is DefaultConfig logging through t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t, logrus.DebugLevel)
	return config
}
