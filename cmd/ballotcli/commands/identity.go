package commands

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"go.vocdoni.io/anonvote/group"
)

var secretFlag string

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Generate a new identity (secret and commitment), printed as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var id *group.Identity
		var err error
		if secretFlag != "" {
			secret, ok := new(big.Int).SetString(secretFlag, 10)
			if !ok {
				return fmt.Errorf("secret must be a decimal number")
			}
			id, err = group.IdentityFromSecret(secret)
		} else {
			id, err = group.NewIdentity()
		}
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(id, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(Stdout, string(data))
		return nil
	},
}
