package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"clientpilot/internal/domain"
	"clientpilot/internal/fsm"
)

// RunStore is the persistence port for runs and steps.
type RunStore interface {
	CreateRun(ctx context.Context, run domain.AgentRun) error
	// AppendStep persists a step and returns it with the sequence number
	// assigned from the steps already stored for the run.
	AppendStep(ctx context.Context, step domain.StepRun) (domain.StepRun, error)
	CompleteStep(ctx context.Context, stepID, outputJSON string) error
	// FinishRun writes the terminal status, error message and finish time.
	FinishRun(ctx context.Context, run domain.AgentRun) error
}

// StepInput is handed to a step body.
type StepInput struct {
	Backend Backend
	Input   Payload
	// Previous holds the outputs of the steps that ran before, in order.
	Previous []Payload
}

// Step is one unit of an operation. Input is recorded before Do runs.
type Step struct {
	Action string
	Input  Payload
	Do     func(ctx context.Context, in StepInput) (Payload, error)
}

// Plan is an ordered list of steps executed under one run.
type Plan struct {
	Action string
	Steps  []Step
}

// Result is what a successful run yields.
type Result struct {
	RunID  string
	Output Payload
}

// Orchestrator executes plans and keeps their audit trail.
type Orchestrator struct {
	Store   RunStore
	Backend Backend
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) backend() Backend {
	if o.Backend != nil {
		return o.Backend
	}
	return Mock{}
}

var (
	tracer  = otel.Tracer("clientpilot/ai")
	aiMeter = otel.GetMeterProvider().Meter("clientpilot/ai")
)

// Run records a new run for userID, executes the plan's steps in order and
// closes the run. On success it returns the last step's output. Any step
// error, including a store fault while recording it, marks the run failed
// and is returned as a *GenerationError.
func (o *Orchestrator) Run(ctx context.Context, userID string, plan Plan) (Result, error) {
	if len(plan.Steps) == 0 {
		return Result{}, fmt.Errorf("%s: plan has no steps", plan.Action)
	}
	backend := o.backend()
	ctx, span := tracer.Start(ctx, "ai.run", trace.WithAttributes(
		attribute.String("ai.action", plan.Action),
		attribute.String("ai.backend", backend.Name()),
	))
	defer span.End()

	run := domain.AgentRun{
		ID:        o.newID(),
		UserID:    userID,
		Action:    plan.Action,
		Status:    domain.RunRunning,
		StartedAt: o.now().UTC().Format(time.RFC3339),
	}
	if err := o.Store.CreateRun(ctx, run); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create run")
		return Result{}, fmt.Errorf("create run: %w", err)
	}
	span.SetAttributes(attribute.String("ai.run_id", run.ID))
	log := o.logger().With("run_id", run.ID, "action", plan.Action, "backend", backend.Name())
	log.Debug("agent run started", "steps", len(plan.Steps))

	outputs := make([]Payload, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		out, err := o.runStep(ctx, run.ID, step, StepInput{Backend: backend, Input: step.Input, Previous: outputs})
		if err != nil {
			return Result{}, o.fail(ctx, span, log, run, step.Action, err)
		}
		outputs = append(outputs, out)
	}

	if err := o.finish(ctx, run, domain.RunCompleted, nil); err != nil {
		// A run that could not be closed as completed is closed as failed.
		return Result{}, o.fail(ctx, span, log, run, "", fmt.Errorf("complete run: %w", err))
	}
	recordRun(ctx, plan.Action, domain.RunCompleted)
	log.Info("agent run completed", "steps", len(outputs))
	return Result{RunID: run.ID, Output: outputs[len(outputs)-1]}, nil
}

func (o *Orchestrator) runStep(ctx context.Context, runID string, step Step, in StepInput) (Payload, error) {
	ctx, span := tracer.Start(ctx, "ai.step", trace.WithAttributes(attribute.String("ai.step", step.Action)))
	defer span.End()

	inputJSON, err := encodePayload(step.Input)
	if err != nil {
		return nil, fmt.Errorf("encode step input: %w", err)
	}
	rec, err := o.Store.AppendStep(ctx, domain.StepRun{
		ID:         o.newID(),
		AgentRunID: runID,
		Action:     step.Action,
		InputJSON:  inputJSON,
		CreatedAt:  o.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("record step: %w", err)
	}
	span.SetAttributes(attribute.Int("ai.step_number", rec.StepNumber))

	out, err := step.Do(ctx, in)
	recordStep(ctx, step.Action, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		return nil, err
	}
	if out == nil {
		out = Payload{}
	}
	outputJSON, err := encodePayload(out)
	if err != nil {
		return nil, fmt.Errorf("encode step output: %w", err)
	}
	if err := o.Store.CompleteStep(ctx, rec.ID, outputJSON); err != nil {
		return nil, fmt.Errorf("record step output: %w", err)
	}
	return out, nil
}

// fail closes the run as failed and builds the error returned to the
// caller. The stored message is the step error's text.
func (o *Orchestrator) fail(ctx context.Context, span trace.Span, log *slog.Logger, run domain.AgentRun, stepAction string, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "run failed")
	msg := cause.Error()
	var err error = &GenerationError{RunID: run.ID, Action: run.Action, Step: stepAction, Err: cause}
	var ge *GenerationError
	if errors.As(cause, &ge) {
		err = cause
	}
	if ferr := o.finish(ctx, run, domain.RunFailed, &msg); ferr != nil {
		log.Error("mark run failed", "error", ferr)
		err = errors.Join(err, fmt.Errorf("mark run failed: %w", ferr))
	}
	recordRun(ctx, run.Action, domain.RunFailed)
	log.Warn("agent run failed", "step", stepAction, "error", msg)
	return err
}

func (o *Orchestrator) finish(ctx context.Context, run domain.AgentRun, status domain.RunStatus, errMsg *string) error {
	if _, err := fsm.Runs.Transition(run.Status, status); err != nil {
		return err
	}
	finished := o.now().UTC().Format(time.RFC3339)
	run.Status = status
	run.ErrorMessage = errMsg
	run.FinishedAt = &finished
	// The run must be closed even when the request was cancelled mid-step.
	return o.Store.FinishRun(context.WithoutCancel(ctx), run)
}

func recordRun(ctx context.Context, action string, status domain.RunStatus) {
	if counter, err := aiMeter.Int64Counter("clientpilot.ai.runs"); err == nil {
		counter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("ai.action", action),
			attribute.String("ai.status", string(status)),
		))
	}
}

func recordStep(ctx context.Context, action string, ok bool) {
	if counter, err := aiMeter.Int64Counter("clientpilot.ai.steps"); err == nil {
		counter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("ai.step", action),
			attribute.Bool("ai.ok", ok),
		))
	}
}
