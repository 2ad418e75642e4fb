package service

import (
	"errors"
	"fmt"
)

// User-facing failures of the commit protocol. All of these recover locally
// (the flow returns to an earlier state); only the ledger's integrity
// violation is unrecoverable.
var (
	ErrMissingCredential   = errors.New("verification required (face or password)")
	ErrAuthorizationFailed = errors.New("authorization failed: invalid credentials")
	ErrElectionClosed      = errors.New("election is closed")
	ErrAlreadyVoted        = errors.New("voter has already voted in this election")
	ErrRateLimited         = errors.New("too many code requests, please wait 10 minutes")
	ErrCodeExpired         = errors.New("code not found or expired")
	ErrCodeInvalidated     = errors.New("code invalidated due to too many failed attempts")
	ErrNotifierFailure     = errors.New("failed to deliver one-time code")
)

// CodeMismatchError reports a wrong code while attempts remain. The caller
// stays in the awaiting-verify state.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("invalid code, %d attempt(s) remaining", e.Remaining)
}
