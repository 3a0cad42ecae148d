package api

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/httprouter/apirest"
	"go.vocdoni.io/anonvote/nullifier"
	"go.vocdoni.io/anonvote/tally"
	"go.vocdoni.io/anonvote/types"
)

func marshalAndSend(ctx *httprouter.HTTPContext, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrMarshalingServerJSON.WithErr(err)
	}
	return ctx.Send(data, apirest.HTTPstatusOK)
}

// ballotFromParam returns the ballot referenced by the ballotId URL param.
func (a *API) ballotFromParam(ctx *httprouter.HTTPContext) (*ballot.Ballot, error) {
	id, err := types.HexStringToFixedBytes(ctx.URLParam("ballotId"), types.BallotIDSize)
	if err != nil {
		return nil, ErrCantParseBallotID.WithErr(err)
	}
	b, err := a.factory.Ballot(id)
	if err != nil {
		return nil, ErrBallotNotFound
	}
	return b, nil
}

// groupFromParam returns the group referenced by the groupId URL param.
func (a *API) groupFromParam(ctx *httprouter.HTTPContext) (*group.Group, error) {
	id, err := uuid.Parse(ctx.URLParam("groupId"))
	if err != nil {
		return nil, ErrCantParseGroupID.WithErr(err)
	}
	g, err := a.groups.Load(id)
	if errors.Is(err, group.ErrGroupNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, ErrCantReadGroup.WithErr(err)
	}
	return g, nil
}

// engineError translates the engine errors to API errors. fallback is used
// for errors that are not the client's fault.
func engineError(err error, fallback apirest.APIerror) apirest.APIerror {
	switch {
	case errors.Is(err, ballot.ErrBallotNotFound):
		return ErrBallotNotFound
	case errors.Is(err, group.ErrGroupNotFound):
		return ErrGroupNotFound
	case errors.Is(err, tally.ErrEmptyProposalList):
		return ErrEmptyProposalList
	case errors.Is(err, tally.ErrTooManyProposals):
		return ErrTooManyProposals
	case errors.Is(err, types.ErrProposalNameTooLong), errors.Is(err, types.ErrInvalidProposalName):
		return ErrProposalNameInvalid.WithErr(err)
	case errors.Is(err, group.ErrInvalidCommitment):
		return ErrCommitmentMalformed.WithErr(err)
	case errors.Is(err, group.ErrDuplicateMember):
		return ErrDuplicateMember
	case errors.Is(err, group.ErrMemberNotFound):
		return ErrMemberNotFound
	case errors.Is(err, group.ErrGroupFull):
		return ErrGroupFull
	case errors.Is(err, ballot.ErrBallotClosed):
		return ErrBallotClosed
	case errors.Is(err, ballot.ErrInvalidProposal):
		return ErrInvalidProposal.WithErr(err)
	case errors.Is(err, ballot.ErrInvalidProof):
		return ErrInvalidProof.WithErr(err)
	case errors.Is(err, ballot.ErrAlreadyVoted):
		return ErrAlreadyVoted
	case errors.Is(err, nullifier.ErrInvalidNullifier):
		return ErrNullifierMalformed.WithErr(err)
	}
	return fallback.WithErr(err)
}
