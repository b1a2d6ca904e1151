package mirror

import (
	"strings"

	"github.com/cognia-ai/cognia/pkg/models"
)

// Prompt template placeholders replaced during assembly.
const (
	PlaceholderPhase    = "{{CURRENT_ORPAR_PHASE}}"
	PlaceholderGuidance = "{{CURRENT_ORPAR_PHASE_GUIDANCE}}"
)

// phaseGuidance is the behavioral guidance substituted per phase.
var phaseGuidance = map[models.Phase]string{
	models.PhaseObserve: "You are observing. Gather information and report " +
		"relevant observations; do not commit to actions yet.",
	models.PhaseReason: "You are reasoning. Analyze the observations and form " +
		"hypotheses; defer tool use to the act phase.",
	models.PhasePlan: "You are planning. Propose concrete actions with the " +
		"tools offered; keep each action small and verifiable.",
	models.PhaseAct: "You are acting. Execute the planned actions and report " +
		"their results faithfully, including failures.",
	models.PhaseReflect: "You are reflecting. Evaluate what worked and what " +
		"did not; surface lessons worth remembering.",
	models.PhaseNull: "No cycle is active. Respond conversationally and wait " +
		"for a cycle to begin before taking actions.",
}

// Guidance returns the behavioral guidance string for a phase.
func Guidance(phase models.Phase) string {
	if g, ok := phaseGuidance[phase]; ok {
		return g
	}
	return phaseGuidance[models.PhaseNull]
}

// RenderPrompt substitutes the phase placeholders in a prompt template.
// The null phase renders as "(Not in active cycle)".
func RenderPrompt(template string, phase models.Phase) string {
	out := strings.ReplaceAll(template, PlaceholderPhase, phase.String())
	return strings.ReplaceAll(out, PlaceholderGuidance, Guidance(phase))
}

// Render substitutes the client's current mirrored phase into the template.
func (c *Client) Render(template string) string {
	return RenderPrompt(template, c.CurrentPhase())
}
