package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/verifier"
)

var groupFlag string

var ballotCmd = &cobra.Command{
	Use:   "ballot",
	Short: "Create, inspect, join and vote ballots",
}

var ballotCreateCmd = &cobra.Command{
	Use:   "create <proposal> [proposal...]",
	Short: "Create a ballot with the given proposal names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var groupID *uuid.UUID
		if groupFlag != "" {
			id, err := uuid.Parse(groupFlag)
			if err != nil {
				return fmt.Errorf("invalid group id: %w", err)
			}
			groupID = &id
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		created, err := c.CreateBallot(args, groupID)
		if err != nil {
			return err
		}
		infoPrint.Fprintln(Stdout, "ballot created")
		printKV("ballot", created.BallotID)
		printKV("scope", created.Scope)
		printKV("group", created.GroupID)
		return nil
	},
}

var ballotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the ballot ids in creation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ids, err := c.Ballots()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(Stdout, id.String())
		}
		return nil
	},
}

var ballotInfoCmd = &cobra.Command{
	Use:   "info <ballot id>",
	Short: "Show the state of a ballot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBallotID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		info, err := c.Ballot(id)
		if err != nil {
			return err
		}
		printInfo(info)
		return nil
	},
}

var ballotJoinCmd = &cobra.Command{
	Use:   "join <ballot id> <commitment>",
	Short: "Add an identity commitment to the ballot group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBallotID(args[0])
		if err != nil {
			return err
		}
		commitment, err := types.HexStringToFixedBytes(args[1], types.CommitmentSize)
		if err != nil {
			return fmt.Errorf("invalid commitment: %w", err)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		joined, err := c.Join(id, commitment)
		if err != nil {
			return err
		}
		infoPrint.Fprintln(Stdout, "joined")
		printKV("index", joined.Index)
		printKV("root", joined.Root)
		return nil
	},
}

var ballotVoteCmd = &cobra.Command{
	Use:   "vote <ballot id> <proposal index> <proof file>",
	Short: "Submit an anonymous vote, the proof file is the JSON encoded proof",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBallotID(args[0])
		if err != nil {
			return err
		}
		proposal, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid proposal index %q", args[1])
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		proof := &verifier.Proof{}
		if err := json.Unmarshal(data, proof); err != nil {
			return fmt.Errorf("cannot decode proof: %w", err)
		}
		scope, err := ballot.ScopeOf(args[0])
		if err != nil {
			return err
		}
		if proof.Scope != nil && proof.Scope.MathBigInt().Cmp(scope) != 0 {
			return fmt.Errorf("proof scope %s does not match the ballot scope %s", proof.Scope, scope)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Vote(id, proposal, proof); err != nil {
			return err
		}
		infoPrint.Fprintln(Stdout, "vote accepted")
		printKV("nullifier", proof.Nullifier)
		return nil
	},
}

var ballotWinnerCmd = &cobra.Command{
	Use:   "winner <ballot id>",
	Short: "Show the leading proposal of a ballot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBallotID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		w, err := c.Winner(id)
		if err != nil {
			return err
		}
		printKV("winner", fmt.Sprintf("%d (%s) with %d votes", w.Index, w.Name, w.VoteCount))
		return nil
	},
}

var ballotCloseCmd = &cobra.Command{
	Use:   "close <ballot id>",
	Short: "Close a ballot (requires the admin token)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBallotID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		info, err := c.Close(id)
		if err != nil {
			return err
		}
		printInfo(info)
		return nil
	},
}

func parseBallotID(s string) (types.HexBytes, error) {
	id, err := types.HexStringToFixedBytes(s, types.BallotIDSize)
	if err != nil {
		return nil, fmt.Errorf("invalid ballot id: %w", err)
	}
	return id, nil
}

func printInfo(info *ballot.Info) {
	printKV("ballot", info.ID)
	printKV("status", info.Status)
	printKV("scope", info.Scope)
	printKV("group", info.GroupID)
	printKV("root", info.Root)
	printKV("members", info.GroupSize)
	printKV("created", info.CreatedAt.Format("2006-01-02 15:04:05"))
	for i, p := range info.Proposals {
		printKV(fmt.Sprintf("  %d %s", i, p.Name), p.VoteCount)
	}
	printKV("winner", fmt.Sprintf("%d (%s)", info.Winner, info.WinnerName))
	printKV("votes", info.TotalVotes)
}
