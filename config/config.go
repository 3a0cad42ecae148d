package config

import (
	"fmt"

	"go.vocdoni.io/dvote/db"
)

// Config stores the global configuration of the ballot node.
type Config struct {
	// DataDir is the path where the node stores its database and config file.
	DataDir string
	// DBType is the key-value database backend.
	DBType string
	// LogLevel logging level
	LogLevel string
	// LogOutput logging output
	LogOutput string
	// LogFormat is console or json
	LogFormat string
	// LogErrorFile for logging warning, error and fatal messages
	LogErrorFile string
	// SaveConfig overwrites the config file with the CLI provided flags
	SaveConfig bool
	// Dev enables developer mode (less security)
	Dev bool
	// PprofPort is the port where pprof http endpoint listen if dev enabled
	PprofPort int

	API      *APICfg
	Metrics  *MetricsCfg
	Verifier *VerifierCfg
}

// APICfg is the HTTP API configuration.
type APICfg struct {
	Route      string
	ListenHost string
	ListenPort int
	// AdminToken is the bearer token that enables the admin methods
	// (closing ballots). Empty disables them.
	AdminToken string
	Ssl        struct {
		Domain  string
		DirCert string
	}
}

// MetricsCfg stores the metrics config.
type MetricsCfg struct {
	Enabled bool
}

// VerifierCfg stores the proof verifier config.
type VerifierCfg struct {
	// VerifyingKey is the path to the default groth16 verifying key.
	VerifyingKey string
	// VerifyingKeysByDepth maps a merkle tree depth to the path of the
	// verifying key of the circuit compiled for that depth.
	VerifyingKeysByDepth map[int]string
	// Insecure accepts every proof. Only allowed in dev mode.
	Insecure bool
}

// NewConfig initializes the fields in the config struct.
func NewConfig() *Config {
	return &Config{
		DBType:   DefaultDBType,
		API:      new(APICfg),
		Metrics:  new(MetricsCfg),
		Verifier: new(VerifierCfg),
	}
}

// ValidDBType returns true if the db type is supported.
func (c *Config) ValidDBType() bool {
	return c.DBType == db.TypePebble || c.DBType == db.TypeLevelDB
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if !c.ValidDBType() {
		return fmt.Errorf("dbType %s is invalid", c.DBType)
	}
	if c.API.ListenPort <= 0 || c.API.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", c.API.ListenPort)
	}
	if c.Verifier.Insecure && !c.Dev {
		return fmt.Errorf("insecure verifier requires dev mode")
	}
	if !c.Verifier.Insecure && c.Verifier.VerifyingKey == "" && len(c.Verifier.VerifyingKeysByDepth) == 0 {
		return fmt.Errorf("no verifying key configured")
	}
	return nil
}

// Error helps to handle better config errors on startup
type Error struct {
	// Critical indicates if the error encountered is critical and the app must be stopped
	Critical bool
	// Message error message
	Message string
}
