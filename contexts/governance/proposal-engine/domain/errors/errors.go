package errors

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid governance input")
	ErrProposalNotFound   = errors.New("proposal not found")
	ErrNotEligible        = errors.New("voter is not an active member")
	ErrNotVotable         = errors.New("proposal is not open for voting")
	ErrVotingClosed       = errors.New("voting window has closed")
	ErrAlreadyVoted       = errors.New("member has already voted on this proposal")
	ErrStorageUnavailable = errors.New("governance storage is unavailable")
)
