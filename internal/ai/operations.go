package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ActionScopeStructuring = "scope_structuring"
	ActionRiskAnalysis     = "risk_analysis"
	ActionUpdateGeneration = "update_generation"

	StepParseInput     = "parse_input"
	StepAnalyzeContext = "analyze_context"
	StepGenerate       = "generate"
)

// DeliverableContext is the slice of a deliverable sent to the model.
type DeliverableContext struct {
	Title   string  `json:"title"`
	Status  string  `json:"status"`
	DueDate *string `json:"due_date,omitempty"`
}

type RiskContext struct {
	ProjectTitle string               `json:"project_title"`
	Deadline     *string              `json:"deadline"`
	Deliverables []DeliverableContext `json:"deliverables"`
}

type UpdateContext struct {
	ClientName   string               `json:"client_name"`
	Company      string               `json:"company"`
	ProjectTitle string               `json:"project_title"`
	Deliverables []DeliverableContext `json:"deliverables"`
}

const scopePrompt = `You are an expert project manager. Turn the client notes below into a structured scope.
Return only JSON with the keys:
- "deliverables": list of {"title", "description"}
- "ambiguities": list of strings
- "suggested_questions": list of strings

Notes:
%s`

const riskPrompt = `You are an expert project manager. Assess delivery risk for the project below.
Return only JSON with the keys:
- "risk_score": integer from 0 to 100
- "risks": list of {"title", "severity", "reason"} where severity is low, medium or high
- "mitigation_plan": list of strings

Context:
%s`

const updatePrompt = `You are a freelancer writing a short, friendly progress update email to a client.
Summarise where the project stands based on the deliverables below.
Return only JSON with the keys "subject" and "body".

Context:
%s`

var (
	scopePlaceholder = Payload{
		"deliverables":        []any{map[string]any{"title": "Setup", "description": "Mock setup"}},
		"ambiguities":         []any{"Mock ambiguity"},
		"suggested_questions": []any{"Mock question?"},
	}
	riskPlaceholder = Payload{
		"risk_score":      15,
		"risks":           []any{map[string]any{"title": "Mock Risk", "severity": "low", "reason": "No real AI key"}},
		"mitigation_plan": []any{"Add an API key"},
	}
	updatePlaceholder = Payload{
		"subject": "Mock Update",
		"body":    "This is a mock update because no generation API key was configured.",
	}
)

// ScopePlaceholder, RiskPlaceholder and UpdatePlaceholder return copies of
// the results produced when no model is configured.
func ScopePlaceholder() Payload  { return clonePayload(scopePlaceholder) }
func RiskPlaceholder() Payload   { return clonePayload(riskPlaceholder) }
func UpdatePlaceholder() Payload { return clonePayload(updatePlaceholder) }

func generateStep(prompt string, placeholder Payload) Step {
	return Step{
		Action: StepGenerate,
		Input:  Payload{"prompt": prompt},
		Do: func(ctx context.Context, in StepInput) (Payload, error) {
			return in.Backend.Generate(ctx, Request{Prompt: prompt, Placeholder: placeholder})
		},
	}
}

// ScopeStructuringPlan turns free-form client notes into deliverables,
// ambiguities and questions.
func ScopeStructuringPlan(rawText string) Plan {
	return Plan{
		Action: ActionScopeStructuring,
		Steps: []Step{
			{
				Action: StepParseInput,
				Input:  Payload{"raw_text": rawText},
				Do: func(_ context.Context, in StepInput) (Payload, error) {
					text := strings.TrimSpace(rawText)
					return Payload{"status": "parsed", "characters": len(text), "words": len(strings.Fields(text))}, nil
				},
			},
			generateStep(fmt.Sprintf(scopePrompt, rawText), scopePlaceholder),
		},
	}
}

// RiskAnalysisPlan scores delivery risk for a project.
func RiskAnalysisPlan(rc RiskContext) (Plan, error) {
	if rc.Deliverables == nil {
		rc.Deliverables = []DeliverableContext{}
	}
	ctxJSON, err := json.Marshal(rc)
	if err != nil {
		return Plan{}, err
	}
	input, err := ToPayload(rc)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Action: ActionRiskAnalysis,
		Steps: []Step{
			{
				Action: StepAnalyzeContext,
				Input:  Payload{"context": input},
				Do: func(_ context.Context, _ StepInput) (Payload, error) {
					counts := map[string]any{}
					for _, d := range rc.Deliverables {
						n, _ := counts[d.Status].(int)
						counts[d.Status] = n + 1
					}
					return Payload{"status": "captured", "deliverable_count": len(rc.Deliverables), "by_status": counts}, nil
				},
			},
			generateStep(fmt.Sprintf(riskPrompt, ctxJSON), riskPlaceholder),
		},
	}, nil
}

// UpdateGenerationPlan drafts a client progress email.
func UpdateGenerationPlan(uc UpdateContext) (Plan, error) {
	if uc.Deliverables == nil {
		uc.Deliverables = []DeliverableContext{}
	}
	ctxJSON, err := json.Marshal(uc)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Action: ActionUpdateGeneration,
		Steps:  []Step{generateStep(fmt.Sprintf(updatePrompt, ctxJSON), updatePlaceholder)},
	}, nil
}
