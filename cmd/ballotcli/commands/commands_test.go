package commands

import (
	"bytes"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/test/testcommon"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/verifier"
)

func newTestNode(t *testing.T) (string, uuid.UUID) {
	server := testcommon.APIserver{}
	server.Start(t, nil)
	return server.ListenAddr.String(), server.AdminToken
}

func run(t *testing.T, args ...string) (string, error) {
	out := &bytes.Buffer{}
	Stdout, Stderr = out, out
	SetupLogPackage = false
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

var hexRe = regexp.MustCompile(`ballot: ([0-9a-f]{64})`)

func TestIdentityCommand(t *testing.T) {
	c := qt.New(t)
	out, err := run(t, "identity", "--secret", "12345")
	c.Assert(err, qt.IsNil)
	id := &group.Identity{}
	c.Assert(json.Unmarshal([]byte(out), id), qt.IsNil)
	c.Assert(id.Secret.String(), qt.Equals, "12345")
	c.Assert(id.Commitment, qt.HasLen, 32)
}

func TestBallotCommands(t *testing.T) {
	c := qt.New(t)
	addr, admin := newTestNode(t)
	secretFlag, groupFlag = "", ""

	out, err := run(t, "--url", addr, "ballot", "create", "alpha", "beta")
	c.Assert(err, qt.IsNil)
	m := hexRe.FindStringSubmatch(out)
	c.Assert(m, qt.HasLen, 2, qt.Commentf("%s", out))
	ballotID := m[1]

	out, err = run(t, "--url", addr, "ballot", "list")
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, ballotID)

	id, err := group.NewIdentity()
	c.Assert(err, qt.IsNil)
	out, err = run(t, "--url", addr, "ballot", "join", ballotID, id.Commitment.String())
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "joined")
	_, err = run(t, "--url", addr, "ballot", "join", ballotID, id.Commitment.String())
	c.Assert(err, qt.ErrorMatches, ".*already joined.*")

	proof := &verifier.Proof{MerkleTreeDepth: 1, Nullifier: make([]byte, 32), Points: []byte{1}}
	proof.Nullifier[31] = 7
	data, err := json.Marshal(proof)
	c.Assert(err, qt.IsNil)
	proofFile := filepath.Join(t.TempDir(), "proof.json")
	c.Assert(os.WriteFile(proofFile, data, 0o600), qt.IsNil)
	// a proof built for another ballot is refused before reaching the node
	wrongScope := *proof
	wrongScope.Scope = types.NewBigInt(big.NewInt(1))
	data, err = json.Marshal(&wrongScope)
	c.Assert(err, qt.IsNil)
	wrongFile := filepath.Join(t.TempDir(), "wrong.json")
	c.Assert(os.WriteFile(wrongFile, data, 0o600), qt.IsNil)
	_, err = run(t, "--url", addr, "ballot", "vote", ballotID, "1", wrongFile)
	c.Assert(err, qt.ErrorMatches, "proof scope 1 does not match the ballot scope .*")

	out, err = run(t, "--url", addr, "ballot", "vote", ballotID, "1", proofFile)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "vote accepted")

	out, err = run(t, "--url", addr, "ballot", "winner", ballotID)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "1 (beta) with 1 votes")

	out, err = run(t, "--url", addr, "--token", admin.String(), "ballot", "close", ballotID)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.Contains, "closed")

	_, err = run(t, "--url", addr, "ballot", "info", "0x00")
	c.Assert(err, qt.ErrorMatches, "invalid ballot id.*")
}
