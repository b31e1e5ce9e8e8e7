package domain

// Status is the lifecycle state of a timesheet entry.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusLocked    Status = "LOCKED"
)

// Action is a lifecycle transition request.
type Action string

const (
	ActionSubmit  Action = "SUBMIT"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionLock    Action = "LOCK"
	ActionUnlock  Action = "UNLOCK"

	// Owner edits are not machine transitions but share the error shape.
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusLocked:
		return true
	}
	return false
}

// Editable reports whether the owner may still change or delete the entry.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// Transition returns the status reached by applying action to from. Every
// legal edge of the machine is listed here; anything else is an
// InvalidStateError.
//
//	DRAFT    --SUBMIT--> SUBMITTED
//	REJECTED --SUBMIT--> SUBMITTED
//	SUBMITTED --APPROVE--> APPROVED
//	SUBMITTED --REJECT--> REJECTED
//	APPROVED --LOCK--> LOCKED
//	LOCKED   --UNLOCK--> APPROVED
func Transition(from Status, action Action) (Status, error) {
	switch action {
	case ActionSubmit:
		if from == StatusDraft || from == StatusRejected {
			return StatusSubmitted, nil
		}
	case ActionApprove:
		if from == StatusSubmitted {
			return StatusApproved, nil
		}
	case ActionReject:
		if from == StatusSubmitted {
			return StatusRejected, nil
		}
	case ActionLock:
		if from == StatusApproved {
			return StatusLocked, nil
		}
	case ActionUnlock:
		if from == StatusLocked {
			return StatusApproved, nil
		}
	}
	return from, &InvalidStateError{From: from, Action: action}
}
