package commands

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go.vocdoni.io/anonvote/types"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Inspect voting groups",
}

var groupInfoCmd = &cobra.Command{
	Use:   "info <group id>",
	Short: "Show the root, size and members of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid group id: %w", err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		g, err := c.Group(id)
		if err != nil {
			return err
		}
		members, err := c.GroupMembers(id)
		if err != nil {
			return err
		}
		printKV("group", g.ID)
		printKV("root", g.Root)
		printKV("size", g.Size)
		for i, m := range members {
			printKV(fmt.Sprintf("  %d", i), m)
		}
		return nil
	},
}

var groupProofCmd = &cobra.Command{
	Use:   "proof <group id> <commitment>",
	Short: "Print the merkle proof of a member as JSON, the input of the prover",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid group id: %w", err)
		}
		commitment, err := types.HexStringToFixedBytes(args[1], types.CommitmentSize)
		if err != nil {
			return fmt.Errorf("invalid commitment: %w", err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		proof, err := c.GroupProof(id, commitment)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(proof, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(Stdout, string(data))
		return nil
	},
}
