package commands

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.vocdoni.io/anonvote/apiclient"
	"go.vocdoni.io/anonvote/log"
)

const (
	urlKey   = "url"
	tokenKey = "token"
)

var debug bool

// when running ballotcli in a test harness which has its own logger setup,
// SetupLogPackage should be false so that ballotcli won't override the test
// harness's logger settings
var SetupLogPackage bool
var Stdout io.Writer
var Stderr io.Writer

var v = viper.New()

var (
	keysPrint   = color.New(color.FgCyan, color.Bold)
	valuesPrint = color.New(color.FgMagenta)
	infoPrint   = color.New(color.FgGreen)
)

func init() {
	Stdout = os.Stdout
	Stderr = os.Stderr
	SetupLogPackage = true
	RootCmd.CompletionOptions.DisableDefaultCmd = true
	RootCmd.PersistentFlags().StringP(urlKey, "u", "http://127.0.0.1:9090/v1", "ballot node API URL")
	RootCmd.PersistentFlags().String(tokenKey, "", "bearer token for the admin methods")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "prints additional information")
	v.SetEnvPrefix("BALLOTCLI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	RootCmd.AddCommand(identityCmd)
	RootCmd.AddCommand(ballotCmd)
	RootCmd.AddCommand(groupCmd)
	ballotCmd.AddCommand(ballotCreateCmd)
	ballotCmd.AddCommand(ballotListCmd)
	ballotCmd.AddCommand(ballotInfoCmd)
	ballotCmd.AddCommand(ballotJoinCmd)
	ballotCmd.AddCommand(ballotVoteCmd)
	ballotCmd.AddCommand(ballotWinnerCmd)
	ballotCmd.AddCommand(ballotCloseCmd)
	groupCmd.AddCommand(groupInfoCmd)
	groupCmd.AddCommand(groupProofCmd)

	ballotCreateCmd.Flags().StringVar(&groupFlag, "group", "", "share the group of another ballot (group uuid)")
	identityCmd.Flags().StringVar(&secretFlag, "secret", "", "derive the identity from this decimal secret")
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(Stderr, err)
		os.Exit(1)
	}
}

var RootCmd = &cobra.Command{
	Use:   "ballotcli",
	Short: "ballotcli talks to a ballot node: create ballots, join them and vote anonymously",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if SetupLogPackage {
			if debug {
				log.Init("debug", "stderr")
			} else {
				log.Init("error", "stderr")
			}
		}
	},
	SilenceUsage: true,
}

// newClient returns an API client for the configured node.
func newClient() (*apiclient.HTTPclient, error) {
	addr, err := url.Parse(v.GetString(urlKey))
	if err != nil {
		return nil, fmt.Errorf("invalid node URL: %w", err)
	}
	var token *uuid.UUID
	if t := v.GetString(tokenKey); t != "" {
		parsed, err := uuid.Parse(t)
		if err != nil {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
		token = &parsed
	}
	return apiclient.NewHTTPclient(addr, token)
}

// printKV prints a key value pair with colors.
func printKV(key string, value any) {
	fmt.Fprintf(Stdout, "%s %s\n", keysPrint.Sprintf("%s:", key), valuesPrint.Sprint(value))
}
