package models

import (
	"time"
)

// NoRevision marks an outcome in which nothing was committed
const NoRevision int64 = -1

// OutcomeState is the terminal state of a commit attempt
type OutcomeState string

const (
	OutcomeAccepted OutcomeState = "accepted"
	OutcomeNoOp     OutcomeState = "no_op"
	OutcomeRejected OutcomeState = "rejected"
)

// RejectionCode tells how the server refused or annotated a commit
type RejectionCode string

const (
	// RejectionHookReport: the commit was stored and the post-commit hook reported problems
	RejectionHookReport RejectionCode = "hook_report"
	// RejectionBlocked: the commit was refused before it was stored
	RejectionBlocked RejectionCode = "blocked"
)

// Rejection is the raw server answer attached to a rejected commit
type Rejection struct {
	Code RejectionCode `json:"code"`
	Text string        `json:"text"`
}

// CommitOutcome is the result of a commit that reached the server
type CommitOutcome struct {
	Revision  int64      `json:"revision"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

// State classifies the outcome. A rejection wins over a revision number,
// because a post-commit hook report comes with the stored revision.
func (o CommitOutcome) State() OutcomeState {
	switch {
	case o.Rejection != nil:
		return OutcomeRejected
	case o.Revision == NoRevision:
		return OutcomeNoOp
	default:
		return OutcomeAccepted
	}
}

// Revision is one entry of a submission history
type Revision struct {
	Number      int64  `json:"number"`
	Description string `json:"description"`
}

// LogEntry is a raw history record as reported by the repository
type LogEntry struct {
	Revision int64     `json:"revision"`
	Date     time.Time `json:"date"`
	Author   string    `json:"author"`
	Message  string    `json:"message"`
}
