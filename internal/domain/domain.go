package domain

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// DeliverableStatus is the lifecycle state of a deliverable.
type DeliverableStatus string

const (
	DeliverablePlanned    DeliverableStatus = "planned"
	DeliverableInProgress DeliverableStatus = "in_progress"
	DeliverableBlocked    DeliverableStatus = "blocked"
	DeliverableCompleted  DeliverableStatus = "completed"
)

// RunStatus is the lifecycle state of an agent run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at"`
}

type Client struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Project status is written only by the transition path in engine; field
// updates never carry a status.
type Project struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"client_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	Deadline    *string       `json:"deadline,omitempty"`
	Version     int64         `json:"version"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

type Deliverable struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      DeliverableStatus `json:"status"`
	DueDate     *string           `json:"due_date,omitempty"`
	Version     int64             `json:"version"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// AgentRun is the audit record of one AI operation.
type AgentRun struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Action       string    `json:"action"`
	Status       RunStatus `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	StartedAt    string    `json:"started_at"`
	FinishedAt   *string   `json:"finished_at,omitempty"`
	Steps        []StepRun `json:"steps,omitempty"`
}

// StepRun is one ordered unit of work inside an AgentRun. OutputJSON stays
// nil until the step succeeds.
type StepRun struct {
	ID         string  `json:"id"`
	AgentRunID string  `json:"agent_run_id"`
	StepNumber int     `json:"step_number"`
	Action     string  `json:"action"`
	InputJSON  string  `json:"input"`
	OutputJSON *string `json:"output,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts"`
	Type        string `json:"type"`
	UserID      string `json:"user_id"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id"`
	PayloadJSON string `json:"payload"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at"`
}

// Milestone is an upcoming deliverable shown on the dashboard.
type Milestone struct {
	DeliverableID string            `json:"deliverable_id"`
	Title         string            `json:"title"`
	ProjectID     string            `json:"project_id"`
	ProjectTitle  string            `json:"project_title"`
	DueDate       string            `json:"due_date"`
	Status        DeliverableStatus `json:"status"`
}

type DashboardSummary struct {
	ClientCount             int         `json:"client_count"`
	ActiveProjectCount      int         `json:"active_project_count"`
	PendingDeliverableCount int         `json:"pending_deliverable_count"`
	OverdueDeliverableCount int         `json:"overdue_deliverable_count"`
	UpcomingMilestones      []Milestone `json:"upcoming_milestones"`
}
