package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientpilot/internal/ai"
	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/repo"
)

func TestStructureScopeMockAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.StructureScope(env.Ctx, env.UserID, "Need a landing page and a blog")
	require.NoError(t, err)
	assert.Equal(t, ai.ScopePlaceholder(), res.Output)

	run, err := env.Engine.GetRun(env.Ctx, env.UserID, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, ai.ActionScopeStructuring, run.Action)
	require.NotNil(t, run.FinishedAt)
	require.Len(t, run.Steps, 2)
	for i, s := range run.Steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.NotNil(t, s.OutputJSON)
	}
	assert.Contains(t, run.Steps[0].InputJSON, "landing page")

	evs, err := env.Engine.ListEvents(env.Ctx, env.UserID, repo.EventFilters{EntityKind: "agent_run"})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "agent_run.completed", evs[0].Type)
}

func TestStructureScopeRequiresText(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.StructureScope(env.Ctx, env.UserID, "   ")
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)

	runs, err := env.Engine.ListRuns(env.Ctx, env.UserID, repo.RunFilters{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAnalyzeRiskSendsProjectContext(t *testing.T) {
	var prompt string
	gen := ai.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return `{"risk_score": 40, "risks": [], "mitigation_plan": ["ship smaller"]}`, nil
	})
	env := newTestEnvWithBackend(t, ai.NewBackend(gen, "fake"))
	p := env.project(t)
	_, err := env.Engine.CreateDeliverable(env.Ctx, env.UserID, engine.DeliverableInput{ProjectID: p.ID, Title: "Copywriting", DueDate: ptr("2024-03-15")})
	require.NoError(t, err)

	res, err := env.Engine.AnalyzeRisk(env.Ctx, env.UserID, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 40, res.Output["risk_score"])
	assert.Contains(t, prompt, `"project_title":"Website"`)
	assert.Contains(t, prompt, `"deadline":"2024-04-01"`)
	assert.Contains(t, prompt, `"due_date":"2024-03-15"`)
}

func TestGenerateUpdateUnknownProject(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.GenerateUpdate(env.Ctx, env.UserID, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestGenerationFailureMarksRunFailed(t *testing.T) {
	gen := ai.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("upstream 503")
	})
	env := newTestEnvWithBackend(t, ai.NewBackend(gen, "fake"))
	p := env.project(t)

	_, err := env.Engine.GenerateUpdate(env.Ctx, env.UserID, p.ID)
	require.ErrorIs(t, err, ai.ErrGeneration)
	var ge *ai.GenerationError
	require.ErrorAs(t, err, &ge)

	run, err := env.Engine.GetRun(env.Ctx, env.UserID, ge.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.True(t, strings.Contains(*run.ErrorMessage, "upstream 503"))
	require.Len(t, run.Steps, 1)
	assert.Nil(t, run.Steps[0].OutputJSON)

	failed, err := env.Engine.ListRuns(env.Ctx, env.UserID, repo.RunFilters{Status: "failed"})
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestRunStoreRejectsStepsAfterFinish(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.StructureScope(env.Ctx, env.UserID, "notes")
	require.NoError(t, err)

	store := env.Engine.AI.Store
	_, err = store.AppendStep(env.Ctx, domain.StepRun{ID: "late", AgentRunID: res.RunID, Action: "late", InputJSON: "{}", CreatedAt: "2024-03-10T12:00:00Z"})
	assert.ErrorIs(t, err, repo.ErrConflict)

	run, err := env.Engine.GetRun(env.Ctx, env.UserID, res.RunID)
	require.NoError(t, err)
	err = store.FinishRun(env.Ctx, run)
	assert.ErrorIs(t, err, repo.ErrConflict)
}

func TestRunsAreUserScoped(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.StructureScope(env.Ctx, env.UserID, "notes")
	require.NoError(t, err)
	bob := seedUser(t, env.Engine, "bob")
	_, err = env.Engine.GetRun(env.Ctx, bob, res.RunID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
