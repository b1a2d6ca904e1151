package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cognia-ai/cognia/pkg/models"
)

const reasonSystem = `You are the reasoning stage of a cognitive agent. Analyze the
observations in light of the retrieved memories and the agent's goal. Respond with a
single JSON object: {"analysis": string, "confidence": number between 0 and 1}.
No prose outside the JSON.`

const planSystem = `You are the planning stage of a cognitive agent. Produce a plan of
concrete actions toward the goal using only the listed tools. Respond with a single
JSON object: {"goal": string, "actions": [{"description": string, "tool": string,
"parameters": object, "priority": integer}]}. Order actions by execution order.
No prose outside the JSON.`

const reflectSystem = `You are the reflection stage of a cognitive agent. Given the
executed plan and its outcome metrics, extract what to learn. Respond with a single
JSON object: {"insights": [string], "improvements": [string]}. No prose outside the
JSON.`

func buildReasonPrompt(goal string, observations []models.Observation, memories []string) string {
	var sb strings.Builder
	if goal != "" {
		fmt.Fprintf(&sb, "Goal: %s\n\n", goal)
	}
	sb.WriteString("Observations:\n")
	for _, obs := range observations {
		fmt.Fprintf(&sb, "- [%s] %s\n", obs.Source, obs.Content)
	}
	if len(memories) > 0 {
		sb.WriteString("\nRelevant memories:\n")
		for _, m := range memories {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}
	return sb.String()
}

func buildPlanPrompt(goal string, reasoning models.Reasoning, tools []models.ToolDescriptor) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n\nAnalysis:\n%s\n\nAvailable tools:\n", goal, reasoning.Analysis)
	for _, tool := range tools {
		fmt.Fprintf(&sb, "- %s (risk: %s)", tool.Name, tool.RiskLevel)
		if len(tool.InputSchema) > 0 {
			fmt.Fprintf(&sb, " schema: %s", compactJSON(tool.InputSchema))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func buildReflectPrompt(plan models.Plan, metrics models.ReflectionMetrics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n\nExecuted actions:\n", plan.Goal)
	for _, action := range plan.Actions {
		fmt.Fprintf(&sb, "- %s via %s: %s", action.Description, action.Tool, action.Status)
		if action.Error != "" {
			fmt.Fprintf(&sb, " (error: %s)", action.Error)
		}
		sb.WriteByte('\n')
	}
	if data, err := json.Marshal(metrics); err == nil {
		fmt.Fprintf(&sb, "\nMetrics: %s\n", data)
	}
	return sb.String()
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
