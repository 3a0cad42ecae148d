//nolint:lll
package api

import (
	"fmt"

	"go.vocdoni.io/anonvote/httprouter/apirest"
)

// APIerror satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 4001-4999 range are the user's fault,
// and error codes 5001-5999 are the server's fault, mimicking HTTP.
var (
	ErrCantParseDataAsJSON   = apirest.APIerror{Code: 4001, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("cannot parse data as JSON")}
	ErrCantParseBallotID     = apirest.APIerror{Code: 4002, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("cannot parse ballotID")}
	ErrBallotNotFound        = apirest.APIerror{Code: 4003, HTTPstatus: apirest.HTTPstatusNotFound, Err: fmt.Errorf("ballot not found")}
	ErrCantParseGroupID      = apirest.APIerror{Code: 4004, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("cannot parse groupID")}
	ErrGroupNotFound         = apirest.APIerror{Code: 4005, HTTPstatus: apirest.HTTPstatusNotFound, Err: fmt.Errorf("group not found")}
	ErrEmptyProposalList     = apirest.APIerror{Code: 4006, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("proposal list is empty")}
	ErrProposalNameInvalid   = apirest.APIerror{Code: 4007, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("proposal name invalid")}
	ErrTooManyProposals      = apirest.APIerror{Code: 4008, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("too many proposals")}
	ErrCommitmentMalformed   = apirest.APIerror{Code: 4009, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("identity commitment malformed")}
	ErrDuplicateMember       = apirest.APIerror{Code: 4010, HTTPstatus: apirest.HTTPstatusConflict, Err: fmt.Errorf("identity commitment already joined")}
	ErrMemberNotFound        = apirest.APIerror{Code: 4011, HTTPstatus: apirest.HTTPstatusNotFound, Err: fmt.Errorf("identity commitment not found")}
	ErrInvalidProposal       = apirest.APIerror{Code: 4012, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("invalid proposal")}
	ErrInvalidProof          = apirest.APIerror{Code: 4013, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("invalid proof")}
	ErrAlreadyVoted          = apirest.APIerror{Code: 4014, HTTPstatus: apirest.HTTPstatusConflict, Err: fmt.Errorf("already voted")}
	ErrBallotClosed          = apirest.APIerror{Code: 4015, HTTPstatus: apirest.HTTPstatusConflict, Err: fmt.Errorf("ballot is closed")}
	ErrNullifierMalformed    = apirest.APIerror{Code: 4016, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("nullifier malformed")}
	ErrParamProofMissing     = apirest.APIerror{Code: 4017, HTTPstatus: apirest.HTTPstatusBadRequest, Err: fmt.Errorf("parameter (proof) missing")}
	ErrGroupFull             = apirest.APIerror{Code: 4018, HTTPstatus: apirest.HTTPstatusConflict, Err: fmt.Errorf("group is full")}
	ErrMarshalingServerJSON  = apirest.APIerror{Code: 5001, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrCantCreateBallot      = apirest.APIerror{Code: 5002, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot create ballot")}
	ErrCantJoin              = apirest.APIerror{Code: 5003, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot join ballot")}
	ErrCantVote              = apirest.APIerror{Code: 5004, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot register vote")}
	ErrCantReadGroup         = apirest.APIerror{Code: 5005, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot read group")}
	ErrCantCloseBallot       = apirest.APIerror{Code: 5006, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot close ballot")}
	ErrCantGenerateProof     = apirest.APIerror{Code: 5007, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot generate membership proof")}
	ErrCantCheckNullifier    = apirest.APIerror{Code: 5008, HTTPstatus: apirest.HTTPstatusInternalErr, Err: fmt.Errorf("cannot check nullifier")}
)
