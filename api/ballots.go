package api

import (
	"encoding/json"
	"errors"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/httprouter/apirest"
	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/types"
)

func (a *API) enableBallotHandlers() error {
	for _, m := range []struct {
		pattern, method, access string
		handler                 apirest.APIhandler
	}{
		{"/ballots", "POST", apirest.MethodAccessTypePublic, a.newBallotHandler},
		{"/ballots", "GET", apirest.MethodAccessTypePublic, a.ballotListHandler},
		{"/ballots/{ballotId}", "GET", apirest.MethodAccessTypePublic, a.ballotHandler},
		{"/ballots/{ballotId}/proposals", "GET", apirest.MethodAccessTypePublic, a.proposalsHandler},
		{"/ballots/{ballotId}/winner", "GET", apirest.MethodAccessTypePublic, a.winnerHandler},
		{"/ballots/{ballotId}/members", "POST", apirest.MethodAccessTypePublic, a.joinHandler},
		{"/ballots/{ballotId}/members/{commitment}", "GET", apirest.MethodAccessTypePublic, a.memberHandler},
		{"/ballots/{ballotId}/votes", "POST", apirest.MethodAccessTypePublic, a.voteHandler},
		{"/ballots/{ballotId}/nullifiers/{nullifier}", "GET", apirest.MethodAccessTypePublic, a.nullifierHandler},
		{"/ballots/{ballotId}/close", "POST", apirest.MethodAccessTypeAdmin, a.closeHandler},
	} {
		if err := a.Endpoint.RegisterMethod(m.pattern, m.method, m.access, m.handler); err != nil {
			return err
		}
	}
	return nil
}

// POST /ballots
// create a new ballot
func (a *API) newBallotHandler(msg *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	req := &NewBallot{}
	if err := json.Unmarshal(msg.Data, req); err != nil {
		return ErrCantParseDataAsJSON.WithErr(err)
	}
	id, err := a.factory.CreateBallot(req.Proposals, req.GroupID)
	if err != nil {
		return engineError(err, ErrCantCreateBallot)
	}
	b, err := a.factory.Ballot(id)
	if err != nil {
		return ErrCantCreateBallot.WithErr(err)
	}
	return marshalAndSend(ctx, &BallotCreated{
		BallotID: id,
		Scope:    types.NewBigInt(b.Scope()),
		GroupID:  b.GroupID(),
	})
}

// GET /ballots
// list the ballot ids in creation order
func (a *API) ballotListHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	return marshalAndSend(ctx, &BallotList{Ballots: a.factory.Ballots()})
}

// GET /ballots/{ballotId}
// get the ballot information
func (a *API) ballotHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	return marshalAndSend(ctx, b.Info())
}

// GET /ballots/{ballotId}/proposals
// get the proposals with their vote counts
func (a *API) proposalsHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	return marshalAndSend(ctx, &ProposalList{Proposals: b.Proposals()})
}

// GET /ballots/{ballotId}/winner
// get the leading proposal
func (a *API) winnerHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	info := b.Info()
	return marshalAndSend(ctx, &Winner{
		Index:     info.Winner,
		Name:      info.WinnerName,
		VoteCount: info.Proposals[info.Winner].VoteCount,
	})
}

// POST /ballots/{ballotId}/members
// add an identity commitment to the ballot group
func (a *API) joinHandler(msg *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	req := &Join{}
	if err := json.Unmarshal(msg.Data, req); err != nil {
		return ErrCantParseDataAsJSON.WithErr(err)
	}
	root, err := b.JoinBallot(req.Commitment)
	if err != nil {
		return engineError(err, ErrCantJoin)
	}
	index, err := b.MemberIndex(req.Commitment)
	if err != nil {
		return ErrCantJoin.WithErr(err)
	}
	return marshalAndSend(ctx, &Joined{Root: root, Index: index})
}

// GET /ballots/{ballotId}/members/{commitment}
// check whether an identity commitment joined the ballot group
func (a *API) memberHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	commitment, err := types.HexStringToFixedBytes(ctx.URLParam("commitment"), types.CommitmentSize)
	if err != nil {
		return ErrCommitmentMalformed.WithErr(err)
	}
	status := &MemberStatus{}
	index, err := b.MemberIndex(commitment)
	switch {
	case err == nil:
		status.Joined = true
		status.Index = &index
	case errors.Is(err, group.ErrMemberNotFound):
	default:
		return engineError(err, ErrCantReadGroup)
	}
	return marshalAndSend(ctx, status)
}

// POST /ballots/{ballotId}/votes
// submit an anonymous vote
func (a *API) voteHandler(msg *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	req := &Vote{}
	if err := json.Unmarshal(msg.Data, req); err != nil {
		return ErrCantParseDataAsJSON.WithErr(err)
	}
	if req.Proof == nil {
		return ErrParamProofMissing
	}
	if err := b.Vote(req.Proposal, req.Proof); err != nil {
		return engineError(err, ErrCantVote)
	}
	log.Debugw("vote registered", "ballot", b.ID().String())
	return marshalAndSend(ctx, &VoteAccepted{Nullifier: req.Proof.Nullifier})
}

// GET /ballots/{ballotId}/nullifiers/{nullifier}
// check whether a nullifier was used in the ballot
func (a *API) nullifierHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	n, err := types.HexStringToFixedBytes(ctx.URLParam("nullifier"), types.NullifierSize)
	if err != nil {
		return ErrNullifierMalformed.WithErr(err)
	}
	voted, err := b.HasVoted(n)
	if err != nil {
		return engineError(err, ErrCantCheckNullifier)
	}
	return marshalAndSend(ctx, &NullifierStatus{Voted: voted})
}

// POST /ballots/{ballotId}/close
// close the ballot, no more joins nor votes are accepted
func (a *API) closeHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	b, err := a.ballotFromParam(ctx)
	if err != nil {
		return err
	}
	if err := b.Close(); err != nil {
		return ErrCantCloseBallot.WithErr(err)
	}
	return marshalAndSend(ctx, b.Info())
}
