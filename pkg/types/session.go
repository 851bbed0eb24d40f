// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SessionState is the navigation state of one portal search session.
type SessionState int

const (
	StateHome SessionState = iota
	StateVerificationPending
	StateAdvancedSearchReady
	StateFiltered
	StateResultsListed
	StateTerminated
)

var stateNames = [...]string{
	StateHome:                "home",
	StateVerificationPending: "verification-pending",
	StateAdvancedSearchReady: "advanced-search-ready",
	StateFiltered:            "filtered",
	StateResultsListed:       "results-listed",
	StateTerminated:          "terminated",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// AttemptOutcome is the result of one verification attempt.
type AttemptOutcome string

const (
	AttemptPending AttemptOutcome = "pending"
	AttemptSuccess AttemptOutcome = "success"
	AttemptFailure AttemptOutcome = "failure"
)

// ChallengeAttempt records one solve-and-submit cycle against the
// human-verification challenge. Index starts at 1.
type ChallengeAttempt struct {
	Index     int            `json:"index" yaml:"index"`
	Image     []byte         `json:"-" yaml:"-"`
	Candidate string         `json:"candidate" yaml:"candidate"`
	Outcome   AttemptOutcome `json:"outcome" yaml:"outcome"`
}
