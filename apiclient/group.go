package apiclient

import (
	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/api"
	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/types"
)

// Groups returns the ids of all the groups.
func (c *HTTPclient) Groups() ([]uuid.UUID, error) {
	list := &api.GroupList{}
	if err := c.requestJSON(list, HTTPGET, nil, "groups"); err != nil {
		return nil, err
	}
	return list.Groups, nil
}

// Group returns the current root and size of a group.
func (c *HTTPclient) Group(groupID uuid.UUID) (*api.Group, error) {
	g := &api.Group{}
	if err := c.requestJSON(g, HTTPGET, nil, "groups", groupID.String()); err != nil {
		return nil, err
	}
	return g, nil
}

// GroupMembers returns the commitments of a group in join order.
func (c *HTTPclient) GroupMembers(groupID uuid.UUID) ([]types.HexBytes, error) {
	list := &api.MemberList{}
	if err := c.requestJSON(list, HTTPGET, nil, "groups", groupID.String(), "members"); err != nil {
		return nil, err
	}
	return list.Members, nil
}

// GroupProof returns the merkle proof of commitment against the current
// group root.
func (c *HTTPclient) GroupProof(groupID uuid.UUID, commitment types.HexBytes) (*group.MembershipProof, error) {
	p := &group.MembershipProof{}
	if err := c.requestJSON(p, HTTPGET, nil, "groups", groupID.String(), "proofs", commitment.String()); err != nil {
		return nil, err
	}
	return p, nil
}
