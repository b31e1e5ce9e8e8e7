package domain

import "fmt"

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DailyCapError reports that a write would push the (user, date) hour total
// above the configured cap. Total includes the hours being written.
type DailyCapError struct {
	UserID   string
	WorkDate string
	Total    float64
	Cap      float64
}

func (e *DailyCapError) Error() string {
	return fmt.Sprintf("daily cap exceeded for %s on %s: %.2fh > %.2fh", e.UserID, e.WorkDate, e.Total, e.Cap)
}

// InvalidStateError reports a lifecycle action that is not legal from the
// entry's current status.
type InvalidStateError struct {
	EntryID string
	From    Status
	Action  Action
}

func (e *InvalidStateError) Error() string {
	if e.EntryID == "" {
		return fmt.Sprintf("action %s not allowed from status %s", e.Action, e.From)
	}
	return fmt.Sprintf("entry %s: action %s not allowed from status %s", e.EntryID, e.Action, e.From)
}
