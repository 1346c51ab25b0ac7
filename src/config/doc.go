// Package config defines the configuration for a tangle node.
//
// Regardless of how the node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, the node relies on a data directory, defined by
// Config.DataDir, where it looks for a few additional files:
//
//  tangle.toml // (optional) configuration file, also .json or .yaml
//  neighbors.json // (optional) a JSON list of udp:// neighbor URIs
//  badger_db // the database, when the badger backend is used
package config
