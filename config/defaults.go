package config

import "go.vocdoni.io/dvote/db"

// Defaults used by the ballot node when no flag or config file value is set.
const (
	DefaultDBType     = db.TypePebble
	DefaultListenHost = "0.0.0.0"
	DefaultListenPort = 9090
	DefaultAPIRoute   = "/v1"
	DefaultLogLevel   = "info"
	DefaultLogOutput  = "stdout"
	DefaultConfigName = "ballotnode"
	DefaultEnvPrefix  = "BALLOTNODE"
)
