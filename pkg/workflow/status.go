// Package workflow holds the book-submission state machine.
//
// A submission moves DRAFT → SUBMITTED → (VERIFIED_STAFF) → APPROVED_CHIEF →
// PAID. Reviewers may send it to REJECTED from SUBMITTED or VERIFIED_STAFF;
// the owner may then resubmit it, re-entering SUBMITTED with the rejection
// note kept. Every change goes through Engine and is a compare-and-swap on
// the current status.
package workflow

// Status is the lifecycle marker of a submission.
type Status string

const (
	Draft            Status = "DRAFT"
	Submitted        Status = "SUBMITTED"
	VerifiedStaff    Status = "VERIFIED_STAFF"
	RevisionRequired Status = "REVISION_REQUIRED"
	ApprovedChief    Status = "APPROVED_CHIEF"
	Rejected         Status = "REJECTED"
	Paid             Status = "PAID"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{Draft, Submitted, VerifiedStaff, RevisionRequired, ApprovedChief, Rejected, Paid}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no action can leave s.
func (s Status) Terminal() bool { return s == Paid }

// Action is the audit tag of a transition.
type Action string

const (
	ActionSubmit   Action = "SUBMIT"
	ActionResubmit Action = "RESUBMIT"
	ActionVerify   Action = "VERIFY"
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionDisburse Action = "PAYMENT_DISBURSED"
)

type edge struct {
	from []Status
	to   Status
}

var transitions = map[Action]edge{
	ActionSubmit:   {from: []Status{Draft}, to: Submitted},
	ActionResubmit: {from: []Status{Rejected, RevisionRequired}, to: Submitted},
	ActionVerify:   {from: []Status{Submitted}, to: VerifiedStaff},
	ActionApprove:  {from: []Status{Submitted, VerifiedStaff}, to: ApprovedChief},
	ActionReject:   {from: []Status{Submitted, VerifiedStaff}, to: Rejected},
	ActionDisburse: {from: []Status{ApprovedChief}, to: Paid},
}

// Allowed reports whether a may be applied to a submission in status from.
func Allowed(a Action, from Status) bool {
	e, ok := transitions[a]
	if !ok {
		return false
	}
	for _, s := range e.from {
		if s == from {
			return true
		}
	}
	return false
}

// Target returns the status a leads to.
func Target(a Action) (Status, bool) {
	e, ok := transitions[a]
	return e.to, ok
}

// Editable reports whether the owner may still change documents in s.
func Editable(s Status) bool {
	return s == Draft || s == Rejected || s == RevisionRequired
}
