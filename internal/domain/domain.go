package domain

// TimesheetEntry is one unit of logged work: a user, a project, a calendar
// date and a number of hours.
type TimesheetEntry struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	ProjectID       string  `json:"project_id"`
	TaskID          *string `json:"task_id,omitempty"`
	WorkDate        string  `json:"work_date" format:"date"`
	Hours           float64 `json:"hours"`
	Description     string  `json:"description,omitempty"`
	TicketRef       *string `json:"ticket_ref,omitempty"`
	TaskType        string  `json:"task_type" enum:"development,qa,ux,ui,meeting,rnd,adhoc,process,operations"`
	Status          Status  `json:"status" enum:"DRAFT,SUBMITTED,APPROVED,REJECTED,LOCKED"`
	SubmittedAt     *string `json:"submitted_at,omitempty" format:"date-time"`
	ApprovedAt      *string `json:"approved_at,omitempty" format:"date-time"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	ApproverComment *string `json:"approver_comment,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// Project is read-only master data; DefaultApprover is the only user who may
// approve, reject, lock or unlock entries logged against it.
type Project struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DefaultApprover string `json:"default_approver"`
	Billable        bool   `json:"billable"`
	CreatedAt       string `json:"created_at" format:"date-time"`
}

// User is the identity read model consumed by the engine: Active feeds the
// missing-timesheet report, Admin grants bulk lock/unlock over any filter.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	Admin     bool   `json:"admin"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Holiday is a non-working day for a region, excluded by compliance reports.
type Holiday struct {
	Date   string `json:"date" format:"date"`
	Region string `json:"region"`
	Name   string `json:"name"`
}

// AuditRecord is an append-only trace of a bulk lock/unlock operation.
type AuditRecord struct {
	ID         int64   `json:"id"`
	ActorID    *string `json:"actor_id,omitempty"`
	Entity     string  `json:"entity"`
	EntityID   *string `json:"entity_id,omitempty"`
	Action     string  `json:"action"`
	BeforeJSON *string `json:"before_json,omitempty"`
	AfterJSON  *string `json:"after_json,omitempty"`
	At         string  `json:"at" format:"date-time"`
}

// APIKey authenticates non-interactive callers; KeyHash is a SHA-256 digest.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// TaskTypes is the categorical tag vocabulary for entries.
var TaskTypes = []string{"development", "qa", "ux", "ui", "meeting", "rnd", "adhoc", "process", "operations"}

// ValidTaskType reports whether t is a known task type.
func ValidTaskType(t string) bool {
	for _, known := range TaskTypes {
		if known == t {
			return true
		}
	}
	return false
}
