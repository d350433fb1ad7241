package fsm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientpilot/internal/domain"
	"clientpilot/internal/fsm"
)

func TestProjectTableExhaustive(t *testing.T) {
	allowed := map[domain.ProjectStatus][]domain.ProjectStatus{
		domain.ProjectActive:    {domain.ProjectOnHold, domain.ProjectCompleted},
		domain.ProjectOnHold:    {domain.ProjectActive, domain.ProjectCompleted},
		domain.ProjectCompleted: nil,
	}
	statuses := fsm.Projects.Statuses()
	require.Len(t, statuses, 3)
	for _, from := range statuses {
		for _, to := range statuses {
			prev, err := fsm.Projects.Transition(from, to)
			assert.Equal(t, from, prev)
			if containsProject(allowed[from], to) {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, fsm.ErrInvalidTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestDeliverableTableExhaustive(t *testing.T) {
	allowed := map[domain.DeliverableStatus][]domain.DeliverableStatus{
		domain.DeliverablePlanned:    {domain.DeliverableInProgress},
		domain.DeliverableInProgress: {domain.DeliverableBlocked, domain.DeliverableCompleted},
		domain.DeliverableBlocked:    {domain.DeliverableInProgress},
		domain.DeliverableCompleted:  nil,
	}
	statuses := fsm.Deliverables.Statuses()
	require.Len(t, statuses, 4)
	for _, from := range statuses {
		for _, to := range statuses {
			_, err := fsm.Deliverables.Transition(from, to)
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.Error(t, err, "%s -> %s", from, to)
			}
		}
	}
}

func containsProject(list []domain.ProjectStatus, s domain.ProjectStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestCompletedIsTerminal(t *testing.T) {
	assert.True(t, fsm.Projects.Terminal(domain.ProjectCompleted))
	assert.True(t, fsm.Deliverables.Terminal(domain.DeliverableCompleted))
	assert.False(t, fsm.Projects.Terminal(domain.ProjectActive))

	for _, target := range fsm.Deliverables.Statuses() {
		_, err := fsm.Deliverables.Transition(domain.DeliverableCompleted, target)
		var ite *fsm.InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Empty(t, ite.Valid)
		assert.NotNil(t, ite.Valid)
	}
}

func TestSelfTransitionRejected(t *testing.T) {
	for _, s := range fsm.Projects.Statuses() {
		_, err := fsm.Projects.Transition(s, s)
		assert.Error(t, err, "project %s", s)
	}
	for _, s := range fsm.Deliverables.Statuses() {
		_, err := fsm.Deliverables.Transition(s, s)
		assert.Error(t, err, "deliverable %s", s)
	}
}

func TestProjectPath(t *testing.T) {
	cur := domain.ProjectActive
	for _, next := range []domain.ProjectStatus{domain.ProjectOnHold, domain.ProjectActive, domain.ProjectCompleted} {
		_, err := fsm.Projects.Transition(cur, next)
		require.NoError(t, err)
		cur = next
	}
	_, err := fsm.Projects.Transition(cur, domain.ProjectActive)
	require.Error(t, err)
}

func TestDeliverableBlockedCannotComplete(t *testing.T) {
	_, err := fsm.Deliverables.Transition(domain.DeliverableBlocked, domain.DeliverableCompleted)
	var ite *fsm.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "deliverable", ite.Entity)
	assert.Equal(t, "blocked", ite.Current)
	assert.Equal(t, "completed", ite.Target)
	assert.Equal(t, []string{"in_progress"}, ite.Valid)
}

func TestUnknownTargetCarriesValidSet(t *testing.T) {
	_, err := fsm.Projects.Transition(domain.ProjectActive, domain.ProjectStatus("archived"))
	var ite *fsm.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, []string{"completed", "on_hold"}, ite.Valid)
	assert.Contains(t, ite.Error(), "active -> archived")
}

func TestAllowedReturnsCopy(t *testing.T) {
	a := fsm.Projects.Allowed(domain.ProjectActive)
	a[0] = "mutated"
	assert.Equal(t, []string{"completed", "on_hold"}, fsm.Projects.Allowed(domain.ProjectActive))
}

func TestRunLifecycle(t *testing.T) {
	assert.True(t, fsm.Runs.CanTransition(domain.RunRunning, domain.RunCompleted))
	assert.True(t, fsm.Runs.CanTransition(domain.RunRunning, domain.RunFailed))
	assert.False(t, fsm.Runs.CanTransition(domain.RunFailed, domain.RunCompleted))
	assert.False(t, fsm.Runs.CanTransition(domain.RunCompleted, domain.RunRunning))
}

func TestSelfLoopInTableIsDropped(t *testing.T) {
	type light string
	m := fsm.New("light", fsm.Table[light]{"red": {"red", "green"}, "green": {"red"}})
	assert.Equal(t, []string{"green"}, m.Allowed("red"))
	assert.False(t, m.CanTransition("red", "red"))
	assert.True(t, m.Known("green"))
	assert.False(t, m.Known("blue"))
}
