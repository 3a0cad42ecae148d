package api

import (
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/httprouter/apirest"
	"go.vocdoni.io/anonvote/types"
)

func (a *API) enableGroupHandlers() error {
	if err := a.Endpoint.RegisterMethod(
		"/groups",
		"GET",
		apirest.MethodAccessTypePublic,
		a.groupListHandler,
	); err != nil {
		return err
	}
	if err := a.Endpoint.RegisterMethod(
		"/groups/{groupId}",
		"GET",
		apirest.MethodAccessTypePublic,
		a.groupHandler,
	); err != nil {
		return err
	}
	if err := a.Endpoint.RegisterMethod(
		"/groups/{groupId}/members",
		"GET",
		apirest.MethodAccessTypePublic,
		a.groupMembersHandler,
	); err != nil {
		return err
	}
	return a.Endpoint.RegisterMethod(
		"/groups/{groupId}/proofs/{commitment}",
		"GET",
		apirest.MethodAccessTypePublic,
		a.groupProofHandler,
	)
}

// GET /groups
func (a *API) groupListHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	ids, err := a.groups.List()
	if err != nil {
		return ErrCantReadGroup.WithErr(err)
	}
	return marshalAndSend(ctx, &GroupList{Groups: ids})
}

// GET /groups/{groupId}
func (a *API) groupHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	g, err := a.groupFromParam(ctx)
	if err != nil {
		return err
	}
	return marshalAndSend(ctx, &Group{ID: g.ID(), Root: g.Root(), Size: g.Size()})
}

// GET /groups/{groupId}/members
// the commitments in join order, which provers need to rebuild the tree
func (a *API) groupMembersHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	g, err := a.groupFromParam(ctx)
	if err != nil {
		return err
	}
	members, err := g.Members()
	if err != nil {
		return ErrCantReadGroup.WithErr(err)
	}
	return marshalAndSend(ctx, &MemberList{Members: members})
}

// GET /groups/{groupId}/proofs/{commitment}
// the merkle proof of a member against the current root
func (a *API) groupProofHandler(_ *apirest.APIdata, ctx *httprouter.HTTPContext) error {
	g, err := a.groupFromParam(ctx)
	if err != nil {
		return err
	}
	commitment, err := types.HexStringToFixedBytes(ctx.URLParam("commitment"), types.CommitmentSize)
	if err != nil {
		return ErrCommitmentMalformed.WithErr(err)
	}
	proof, err := g.GenProof(commitment)
	if err != nil {
		return engineError(err, ErrCantGenerateProof)
	}
	return marshalAndSend(ctx, proof)
}
