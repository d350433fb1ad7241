package fsm

import "clientpilot/internal/domain"

var Projects = New("project", Table[domain.ProjectStatus]{
	domain.ProjectActive:    {domain.ProjectOnHold, domain.ProjectCompleted},
	domain.ProjectOnHold:    {domain.ProjectActive, domain.ProjectCompleted},
	domain.ProjectCompleted: {},
})

var Deliverables = New("deliverable", Table[domain.DeliverableStatus]{
	domain.DeliverablePlanned:    {domain.DeliverableInProgress},
	domain.DeliverableInProgress: {domain.DeliverableBlocked, domain.DeliverableCompleted},
	domain.DeliverableBlocked:    {domain.DeliverableInProgress},
	domain.DeliverableCompleted:  {},
})

// Runs guards the agent run lifecycle: a run finishes exactly once.
var Runs = New("agent_run", Table[domain.RunStatus]{
	domain.RunRunning:   {domain.RunCompleted, domain.RunFailed},
	domain.RunCompleted: {},
	domain.RunFailed:    {},
})
