package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/tangle/src/tangle"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a tangle node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runTangle,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runTangle(cmd *cobra.Command, args []string) error {
	engine := tangle.NewTangle(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-file", _config.LogFile, "Also write the logs to this file")

	// Gossip
	cmd.Flags().StringP("listen", "l", _config.UDPAddr, "Listen IP:Port for UDP gossip")
	cmd.Flags().DurationP("timeout", "t", _config.UDPTimeout, "UDP write timeout")
	cmd.Flags().StringSliceP("neighbors", "n", _config.Neighbors, "udp://host:port URIs of the neighbors")
	cmd.Flags().Bool("testnet", _config.Testnet, "Accept lighter transactions")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP API service")
	cmd.Flags().Bool("no-service", _config.NoService, "Do not start the HTTP API service")
	cmd.Flags().Int("pow-workers", _config.MaxPowWorkers, "Number of goroutines searching nonces (0 for all CPUs but one)")

	// Store
	cmd.Flags().String("backend", _config.Backend, "Storage backend: inmem, badger or leveldb")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of cells of each arena kept in memory")

	// Ledger
	cmd.Flags().String("coordinator", _config.Coordinator, "Address of the milestone signer")
	cmd.Flags().Int("coordinator-depth", _config.CoordinatorDepth, "Depth of the coordinator's Merkle tree")
	cmd.Flags().Int64("milestone-start-index", _config.MilestoneStartIndex, "Index milestones must exceed")
	cmd.Flags().String("snapshot", _config.Snapshot, "JSON file of genesis balances")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between broadcasts")
	cmd.Flags().Duration("milestone-period", _config.MilestonePeriod, "Time between milestone updates")
	cmd.Flags().Duration("tip-request-period", _config.TipRequestPeriod, "Time between requests of the neighbors' milestones")
	cmd.Flags().Int("queue-size", _config.QueueSize, "Size of the broadcast queue")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":             _config.DataDir,
		"LogLevel":            _config.LogLevel,
		"LogFile":             _config.LogFile,
		"UDPAddr":             _config.UDPAddr,
		"UDPTimeout":          _config.UDPTimeout,
		"Neighbors":           _config.Neighbors,
		"Testnet":             _config.Testnet,
		"NoService":           _config.NoService,
		"ServiceAddr":         _config.ServiceAddr,
		"MaxPowWorkers":       _config.MaxPowWorkers,
		"Backend":             _config.Backend,
		"Coordinator":         _config.Coordinator,
		"CoordinatorDepth":    _config.CoordinatorDepth,
		"MilestoneStartIndex": _config.MilestoneStartIndex,
		"Snapshot":            _config.Snapshot,
		"HeartbeatTimeout":    _config.HeartbeatTimeout,
		"MilestonePeriod":     _config.MilestonePeriod,
		"TipRequestPeriod":    _config.TipRequestPeriod,
		"QueueSize":           _config.QueueSize,
	}

	if _config.Backend != "inmem" {
		logFields["DatabaseDir"] = _config.DatabaseDir
		logFields["CacheSize"] = _config.CacheSize
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/tangle.toml (.json, .yaml also work)
	viper.SetConfigName("tangle")        // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
