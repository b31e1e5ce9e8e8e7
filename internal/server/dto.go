package server

// Request payloads

type CreateEntryRequest struct {
	UserID      string  `json:"user_id,omitempty"`
	ProjectID   string  `json:"project_id"`
	TaskID      *string `json:"task_id,omitempty"`
	WorkDate    string  `json:"work_date" format:"date"`
	Hours       float64 `json:"hours"`
	Description *string `json:"description,omitempty"`
	TicketRef   *string `json:"ticket_ref,omitempty"`
	TaskType    *string `json:"task_type,omitempty" enum:"development,qa,ux,ui,meeting,rnd,adhoc,process,operations"`
}

type UpdateEntryRequest struct {
	Hours       *float64 `json:"hours,omitempty"`
	Description *string  `json:"description,omitempty"`
	TicketRef   *string  `json:"ticket_ref,omitempty"`
	TaskID      *string  `json:"task_id,omitempty"`
	TaskType    *string  `json:"task_type,omitempty" enum:"development,qa,ux,ui,meeting,rnd,adhoc,process,operations"`
}

type DecisionRequest struct {
	Comment string `json:"comment,omitempty"`
}

type BulkRequest struct {
	From      string `json:"from" format:"date"`
	To        string `json:"to" format:"date"`
	ProjectID string `json:"project_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Preview   bool   `json:"preview,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type CreateUserRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active *bool  `json:"active,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
}

type CreateProjectRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DefaultApprover string `json:"default_approver"`
	Billable        bool   `json:"billable,omitempty"`
}

type CreateHolidayRequest struct {
	Date   string `json:"date" format:"date"`
	Region string `json:"region"`
	Name   string `json:"name"`
}
