package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/ledger"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/mosaicnetworks/tangle/src/node"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultLevelDBFile is the default name of the folder containing the
	// LevelDB database
	DefaultLevelDBFile = "leveldb"
)

// Storage backends.
const (
	InmemBackend   = "inmem"
	BadgerBackend  = "badger"
	LevelDBBackend = "leveldb"
)

// Default configuration values.
const (
	DefaultLogLevel           = "debug"
	DefaultBackend            = InmemBackend
	DefaultCacheSize          = 10000
	DefaultUDPAddr            = "0.0.0.0:14600"
	DefaultServiceAddr        = "127.0.0.1:14265"
	DefaultHeartbeatTimeout   = 10 * time.Millisecond
	DefaultUDPTimeout         = 1000 * time.Millisecond
	DefaultMilestonePeriod    = 5 * time.Second
	DefaultTipRequestPeriod   = 5 * time.Second
	DefaultQueueSize          = 1000
	DefaultCoordinator        = ledger.DefaultCoordinator
	DefaultCoordinatorDepth   = ledger.DefaultCoordinatorDepth
	DefaultMinWeightMagnitude = model.MinWeightMagnitude
	DefaultTestnetMWM         = 9
	DefaultMaxPowWorkers      = 0
)

// Config contains all the configuration properties of a tangle node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Backend selects the storage of the arenas: inmem, badger or leveldb.
	Backend string `mapstructure:"backend"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the number of cells of each arena kept in memory.
	CacheSize int `mapstructure:"cache-size"`

	// UDPAddr is the local address:port where this node gossips with its
	// neighbors.
	UDPAddr string `mapstructure:"listen"`

	// UDPTimeout is the write deadline of gossip packets.
	UDPTimeout time.Duration `mapstructure:"timeout"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP API service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Neighbors are udp://host:port URIs gossiped with, on top of those listed
	// in the neighbors.json file of the data directory.
	Neighbors []string `mapstructure:"neighbors"`

	// HeartbeatTimeout is the frequency of the broadcast timer when there are
	// transactions to broadcast.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// MilestonePeriod is the time between two milestone updates.
	MilestonePeriod time.Duration `mapstructure:"milestone-period"`

	// TipRequestPeriod is the time between two requests of our neighbors'
	// latest milestones.
	TipRequestPeriod time.Duration `mapstructure:"tip-request-period"`

	// QueueSize bounds the broadcast queue.
	QueueSize int `mapstructure:"queue-size"`

	// Coordinator is the address of the milestone signer, in trytes.
	Coordinator string `mapstructure:"coordinator"`

	// CoordinatorDepth is the depth of the coordinator's Merkle tree.
	CoordinatorDepth int `mapstructure:"coordinator-depth"`

	// MilestoneStartIndex is the index milestones must exceed to be accepted.
	MilestoneStartIndex int64 `mapstructure:"milestone-start-index"`

	// Snapshot is an optional JSON file mapping addresses to their genesis
	// balances. All the supply is held by the null address by default.
	Snapshot string `mapstructure:"snapshot"`

	// Testnet lowers the weight required from gossiped transactions.
	Testnet bool `mapstructure:"testnet"`

	// MaxPowWorkers is the number of goroutines searching nonces for
	// attachToTangle. Zero or less uses all CPUs but one.
	MaxPowWorkers int `mapstructure:"pow-workers"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		Backend:          DefaultBackend,
		DatabaseDir:      DefaultDatabaseDir(),
		CacheSize:        DefaultCacheSize,
		UDPAddr:          DefaultUDPAddr,
		UDPTimeout:       DefaultUDPTimeout,
		ServiceAddr:      DefaultServiceAddr,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		MilestonePeriod:  DefaultMilestonePeriod,
		TipRequestPeriod: DefaultTipRequestPeriod,
		QueueSize:        DefaultQueueSize,
		Coordinator:      DefaultCoordinator,
		CoordinatorDepth: DefaultCoordinatorDepth,
		MaxPowWorkers:    DefaultMaxPowWorkers,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
		if c.Backend == LevelDBBackend {
			c.DatabaseDir = filepath.Join(dataDir, DefaultLevelDBFile)
		}
	}
}

// MinWeightMagnitude is the number of trailing zero trits required from the
// hash of a gossiped transaction.
func (c *Config) MinWeightMagnitude() int {
	if c.Testnet {
		return DefaultTestnetMWM
	}
	return DefaultMinWeightMagnitude
}

// NodeConfig extracts the parameters of the node workers.
func (c *Config) NodeConfig() *node.Config {
	return node.NewConfig(
		c.HeartbeatTimeout,
		c.MilestonePeriod,
		c.TipRequestPeriod,
		c.QueueSize,
		c.MinWeightMagnitude(),
		c.Logger().Logger,
	)
}

// CoordinatorAddress parses Coordinator.
func (c *Config) CoordinatorAddress() (model.Hash, error) {
	return model.HashFromTrytes(c.Coordinator)
}

// LoadSnapshot returns the genesis balances.
func (c *Config) LoadSnapshot() (ledger.Snapshot, error) {
	if c.Snapshot == "" {
		return ledger.DefaultSnapshot(), nil
	}
	return ledger.LoadSnapshot(c.Snapshot)
}

// Logger returns a formatted logrus Entry, with prefix set to "tangle". When
// LogFile is set, every level is also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "tangle")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Tangle")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Tangle")
		} else {
			return filepath.Join(home, ".tangle")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
