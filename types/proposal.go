package types

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// ErrProposalNameTooLong is returned when a proposal name does not fit in
// ProposalNameMaxSize bytes.
var ErrProposalNameTooLong = fmt.Errorf("proposal name exceeds %d bytes", ProposalNameMaxSize)

// ErrInvalidProposalName is returned for proposal names that are not valid utf8.
var ErrInvalidProposalName = fmt.Errorf("invalid proposal name")

// ProposalName is the fixed width encoding of a proposal name, right padded
// with zero bytes.
type ProposalName [ProposalNameMaxSize]byte

// EncodeProposalName encodes name into its fixed width representation.
// Names longer than ProposalNameMaxSize bytes are rejected, never truncated.
func EncodeProposalName(name string) (ProposalName, error) {
	var pn ProposalName
	if len(name) > ProposalNameMaxSize {
		return pn, fmt.Errorf("%w: %q", ErrProposalNameTooLong, name)
	}
	if !utf8.ValidString(name) {
		return pn, fmt.Errorf("%w: not valid utf8: %q", ErrInvalidProposalName, name)
	}
	copy(pn[:], name)
	return pn, nil
}

// String returns the name with the zero padding removed.
func (pn ProposalName) String() string {
	return string(bytes.TrimRight(pn[:], "\x00"))
}

// ValidateProposalNames checks that every name fits in a ProposalName.
func ValidateProposalNames(names []string) error {
	for _, n := range names {
		if _, err := EncodeProposalName(n); err != nil {
			return err
		}
	}
	return nil
}
