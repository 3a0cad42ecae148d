package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // for the pprof endpoints
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/api"
	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/config"
	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/internal"
	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/metrics"
	"go.vocdoni.io/anonvote/verifier"
	"go.vocdoni.io/anonvote/verifier/groth16"
)

const (
	groupsPrefix  = "g/"
	ballotsPrefix = "v/"
)

func newConfig() (*config.Config, config.Error) {
	var cfgError config.Error
	globalCfg := config.NewConfig()
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, config.Error{
			Critical: true,
			Message:  fmt.Sprintf("cannot get user home directory with error: %s", err),
		}
	}

	// CLI flags have preference over the config file
	flag.StringVarP(&globalCfg.DataDir, "dataDir", "d", filepath.Join(home, ".ballotnode"),
		"directory where data is stored")
	flag.StringVarP(&globalCfg.DBType, "dbType", "t", config.DefaultDBType,
		fmt.Sprintf("key-value db type (%s, %s)", db.TypePebble, db.TypeLevelDB))
	flag.BoolVar(&globalCfg.Dev, "dev", false,
		"use developer mode (less security)")
	flag.IntVar(&globalCfg.PprofPort, "pprof", 0,
		"pprof port for runtime profiling data (zero is disabled)")
	flag.StringVarP(&globalCfg.LogLevel, "logLevel", "l", config.DefaultLogLevel,
		"log level (debug, info, warn, error, fatal)")
	flag.StringVar(&globalCfg.LogOutput, "logOutput", config.DefaultLogOutput,
		"log output (stdout, stderr or filepath)")
	flag.StringVar(&globalCfg.LogFormat, "logFormat", log.FormatConsole,
		"log format (console, json)")
	flag.StringVar(&globalCfg.LogErrorFile, "logErrorFile", "",
		"log errors and warnings to a file")
	flag.BoolVar(&globalCfg.SaveConfig, "saveConfig", false,
		"overwrite an existing config file with the provided CLI flags")
	// api
	flag.StringVar(&globalCfg.API.Route, "apiRoute", config.DefaultAPIRoute,
		"HTTP API base route")
	flag.StringVar(&globalCfg.API.ListenHost, "listenHost", config.DefaultListenHost,
		"API endpoint listen address")
	flag.IntVarP(&globalCfg.API.ListenPort, "listenPort", "p", config.DefaultListenPort,
		"API endpoint http port")
	flag.StringVar(&globalCfg.API.AdminToken, "adminToken", "",
		"bearer token (uuid) enabling the admin methods, empty disables them")
	flag.StringVar(&globalCfg.API.Ssl.Domain, "sslDomain", "",
		"enable TLS-secure domain with LetsEncrypt (listenPort=443 is required)")
	// verifier
	flag.StringVar(&globalCfg.Verifier.VerifyingKey, "verifyingKey", "",
		"path to the default groth16 verifying key")
	keysByDepth := flag.StringToString("verifyingKeys", map[string]string{},
		"verifying keys per merkle tree depth (depth=path,depth=path,...)")
	flag.BoolVar(&globalCfg.Verifier.Insecure, "insecureVerifier", false,
		"accept every proof (requires --dev)")
	// metrics
	flag.BoolVar(&globalCfg.Metrics.Enabled, "metricsEnabled", false, "enable prometheus metrics")

	flag.CommandLine.SortFlags = false
	flag.Parse()

	globalCfg.Verifier.VerifyingKeysByDepth, err = parseKeysByDepth(*keysByDepth)
	if err != nil {
		return nil, config.Error{Critical: true, Message: err.Error()}
	}

	// setting up viper
	viper := viper.New()
	viper.SetConfigName(config.DefaultConfigName)
	viper.SetConfigType("yml")
	viper.SetEnvPrefix(config.DefaultEnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set FlagVars first
	viper.BindPFlag("dataDir", flag.Lookup("dataDir"))
	globalCfg.DataDir = viper.GetString("dataDir")
	viper.AddConfigPath(globalCfg.DataDir)

	viper.BindPFlag("dbType", flag.Lookup("dbType"))
	viper.BindPFlag("dev", flag.Lookup("dev"))
	viper.BindPFlag("pprofPort", flag.Lookup("pprof"))
	viper.BindPFlag("logLevel", flag.Lookup("logLevel"))
	viper.BindPFlag("logErrorFile", flag.Lookup("logErrorFile"))
	viper.BindPFlag("logOutput", flag.Lookup("logOutput"))
	viper.BindPFlag("logFormat", flag.Lookup("logFormat"))
	viper.BindPFlag("saveConfig", flag.Lookup("saveConfig"))

	// api
	viper.BindPFlag("api.Route", flag.Lookup("apiRoute"))
	viper.BindPFlag("api.ListenHost", flag.Lookup("listenHost"))
	viper.BindPFlag("api.ListenPort", flag.Lookup("listenPort"))
	viper.BindPFlag("api.AdminToken", flag.Lookup("adminToken"))
	viper.Set("api.Ssl.DirCert", filepath.Join(globalCfg.DataDir, "tls"))
	viper.BindPFlag("api.Ssl.Domain", flag.Lookup("sslDomain"))

	// verifier
	viper.BindPFlag("verifier.VerifyingKey", flag.Lookup("verifyingKey"))
	viper.BindPFlag("verifier.Insecure", flag.Lookup("insecureVerifier"))
	if len(globalCfg.Verifier.VerifyingKeysByDepth) > 0 {
		viper.Set("verifier.VerifyingKeysByDepth", globalCfg.Verifier.VerifyingKeysByDepth)
	}

	// metrics
	viper.BindPFlag("metrics.Enabled", flag.Lookup("metricsEnabled"))

	configFile := filepath.Join(globalCfg.DataDir, config.DefaultConfigName+".yml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		cfgError = config.Error{
			Message: fmt.Sprintf("creating new config file in %s", globalCfg.DataDir),
		}
		if err := os.MkdirAll(globalCfg.DataDir, os.ModePerm); err != nil {
			cfgError = config.Error{
				Message: fmt.Sprintf("cannot create data directory: %s", err),
			}
		}
		if err := viper.SafeWriteConfig(); err != nil {
			cfgError = config.Error{
				Message: fmt.Sprintf("cannot write config file into config dir: %s", err),
			}
		}
	} else if err := viper.ReadInConfig(); err != nil {
		cfgError = config.Error{
			Message: fmt.Sprintf("cannot read loaded config file in %s: %s", globalCfg.DataDir, err),
		}
	}
	if err := viper.Unmarshal(&globalCfg); err != nil {
		cfgError = config.Error{
			Message: fmt.Sprintf("cannot unmarshal loaded config file: %s", err),
		}
	}

	if globalCfg.SaveConfig {
		viper.Set("saveConfig", false)
		if err := viper.WriteConfig(); err != nil {
			cfgError = config.Error{
				Message: fmt.Sprintf("cannot overwrite config file into config dir: %s", err),
			}
		}
	}
	return globalCfg, cfgError
}

// parseKeysByDepth parses the depth=path pairs of the verifyingKeys flag.
func parseKeysByDepth(m map[string]string) (map[int]string, error) {
	keys := make(map[int]string, len(m))
	for d, path := range m {
		depth, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("invalid merkle tree depth %q: %w", d, err)
		}
		keys[depth] = path
	}
	return keys, nil
}

func newVerifier(cfg *config.VerifierCfg) (verifier.Verifier, error) {
	if cfg.Insecure {
		log.Warn("insecure verifier enabled, every proof will be accepted!")
		return verifier.AcceptAll, nil
	}
	return groth16.LoadVerifier(cfg.VerifyingKey, cfg.VerifyingKeysByDepth)
}

func main() {
	// Don't use the log package here, the logger isn't set up yet.
	fmt.Fprintf(os.Stderr, "ballotnode version %q\n", internal.Version)

	globalCfg, cfgErr := newConfig()
	if globalCfg == nil {
		fmt.Fprintf(os.Stderr, "cannot read configuration: %s\n", cfgErr.Message)
		os.Exit(1)
	}
	if err := log.Configure(log.Options{
		Level:     globalCfg.LogLevel,
		Output:    globalCfg.LogOutput,
		Format:    globalCfg.LogFormat,
		ErrorFile: globalCfg.LogErrorFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "cannot initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Debugf("initializing config %+v", *globalCfg)

	switch {
	case cfgErr.Critical && cfgErr.Message != "":
		log.Fatalf("critical error loading config: %s", cfgErr.Message)
	case cfgErr.Message != "":
		log.Warnf("non-critical error loading config: %s", cfgErr.Message)
	default:
		log.Infof("config file loaded successfully. Reminder: CLI flags have preference")
	}
	if err := globalCfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// If dev enabled, expose debugging profiles under an http server.
	// If PprofPort is not set, a random port between 61000 and 61100 is choosed.
	if globalCfg.Dev || globalCfg.PprofPort > 0 {
		go func() {
			if globalCfg.PprofPort == 0 {
				globalCfg.PprofPort = int((time.Now().Unix() % 100)) + 61000
			}
			ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", globalCfg.PprofPort))
			if err != nil {
				log.Fatal(err)
			}
			log.Warnf("started pprof http endpoints at http://%s/debug/pprof", ln.Addr())
			log.Error(http.Serve(ln, nil))
		}()
	}

	log.Infow("starting ballot node", "version", internal.Version, "dataDir", globalCfg.DataDir)
	if globalCfg.Dev {
		log.Warn("developer mode is enabled!")
	}

	database, err := metadb.New(globalCfg.DBType, filepath.Join(globalCfg.DataDir, "db"))
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	v, err := newVerifier(globalCfg.Verifier)
	if err != nil {
		log.Fatalf("cannot load proof verifier: %v", err)
	}

	groups := group.NewRegistry(prefixeddb.NewPrefixedDatabase(database, []byte(groupsPrefix)))
	factory, err := ballot.NewFactory(prefixeddb.NewPrefixedDatabase(database, []byte(ballotsPrefix)), groups, v)
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("ballots loaded", "count", len(factory.Ballots()))

	var router httprouter.HTTProuter
	router.TLSdomain = globalCfg.API.Ssl.Domain
	router.TLSdirCert = globalCfg.API.Ssl.DirCert
	if err := router.Init(globalCfg.API.ListenHost, globalCfg.API.ListenPort); err != nil {
		log.Fatal(err)
	}

	if globalCfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		metrics.Enable(collector, &router, "/metrics")
		factory.AddEventListener(collector)
	}

	uAPI, err := api.NewAPI(&router, globalCfg.API.Route)
	if err != nil {
		log.Fatal(err)
	}
	uAPI.Attach(factory)
	if err := uAPI.EnableHandlers(api.BallotHandler, api.GroupHandler); err != nil {
		log.Fatal(err)
	}
	if globalCfg.API.AdminToken != "" {
		uAPI.Endpoint.SetAdminToken(globalCfg.API.AdminToken)
		log.Info("admin methods enabled")
	}
	log.Infof("API available at %s", globalCfg.API.Route)

	// close if interrupt received
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Warnf("received SIGTERM, exiting at %s", time.Now().Format(time.RFC850))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := router.Shutdown(ctx); err != nil {
		log.Warn(err)
	}
}
