package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"leadflow/internal/capability"
	"leadflow/internal/models"
)

const exampleMessage = "Sarah wants a villa in New Cairo, budget 8M, phone 01234567890"

// SystemPrompt renders the directive prompt for one run. It names every
// capability in order and fixes the one-object-per-turn JSON protocol.
func SystemPrompt(teamID string, caps []capability.Capability) string {
	var b strings.Builder

	b.WriteString("You are a real estate lead assistant. You must follow this exact sequence of steps.\n\n")

	for i, c := range caps {
		fmt.Fprintf(&b, "Step %d:\n", i+1)
		b.WriteString(stepInstruction(teamID, c))
		if c.Description != "" {
			fmt.Fprintf(&b, "  (%s: %s)\n", c.Name, c.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("Final step:\nReturn a short, friendly message to the user confirming what happened.\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Call each tool exactly once, in the order above. Do not skip any step.\n")
	b.WriteString("- Always pass the full, accumulated `lead_info` object from one step's output into the next step's input. Do not drop fields and do not invent fields.\n")
	b.WriteString("- Never repeat a step that has already run.\n")
	b.WriteString("- Only call the tools listed above.\n\n")

	b.WriteString("Output protocol:\n")
	b.WriteString("Reply with exactly one JSON object per turn and nothing else. No markdown, no code fences.\n")
	b.WriteString(`To call a tool: {"action":"call","tool":"<name>","arguments":{...}}` + "\n")
	b.WriteString(`To finish:      {"action":"final","response":"<text>"}` + "\n\n")

	b.WriteString("Example:\n")
	fmt.Fprintf(&b, "Input: %q\n", exampleMessage)
	for _, line := range exampleTurns(teamID, caps) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func stepInstruction(teamID string, c capability.Capability) string {
	switch c.Kind {
	case capability.KindExtraction:
		return fmt.Sprintf("Call `%s` with {\"message\": <the user message>}. Assign the result to `lead_info`.\n", c.Name)
	case capability.KindDataSource:
		return fmt.Sprintf("Call `%s` with {\"lead_info\": lead_info}. It returns lead_info enriched with `matched_projects`; replace `lead_info` with the result.\n", c.Name)
	case capability.KindCRM:
		return fmt.Sprintf("Set `lead_info.team_id = %q`, then call `%s` with {\"lead_info\": lead_info}. Keep the result as `crm`.\n", teamID, c.Name)
	case capability.KindNotification:
		return fmt.Sprintf("Call `%s` with {\"lead_info\": lead_info, \"success\": crm.success, \"error_message\": crm.message if the CRM step failed, otherwise null}.\n", c.Name)
	default:
		return fmt.Sprintf("Call `%s`.\n", c.Name)
	}
}

// exampleTurns walks the Sarah message through the run's own tools.
func exampleTurns(teamID string, caps []capability.Capability) []string {
	lead := models.LeadInfo{
		FirstName:    "Sarah",
		Phone:        "01234567890",
		Location:     "New Cairo",
		PropertyType: "villa",
		Budget:       8_000_000,
		TeamID:       teamID,
	}
	enriched := lead
	enriched.MatchedProjects = []string{"Palm Hills New Cairo"}

	var turns []string
	current := lead
	for _, c := range caps {
		var args map[string]interface{}
		switch c.Kind {
		case capability.KindExtraction:
			args = map[string]interface{}{capability.ArgMessage: exampleMessage}
		case capability.KindDataSource:
			args = map[string]interface{}{capability.ArgLeadInfo: current.ToMap()}
			current = enriched
		case capability.KindCRM:
			args = map[string]interface{}{capability.ArgLeadInfo: current.ToMap()}
		case capability.KindNotification:
			args = map[string]interface{}{
				capability.ArgLeadInfo:     current.ToMap(),
				capability.ArgSuccess:      true,
				capability.ArgErrorMessage: nil,
			}
		}
		turns = append(turns, mustJSON(Action{Kind: ActionCall, Tool: c.Name, Arguments: args}))
	}
	turns = append(turns, mustJSON(Action{Kind: ActionFinal, Response: "✅ Lead was added to the CRM successfully."}))
	return turns
}

// TranscriptPrompt renders the user turn: the message, every completed step
// with its arguments and result, and a hint for what comes next.
func TranscriptPrompt(message string, steps []Step, next *capability.Capability) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User message: %s\n\n", message)

	b.WriteString("Completed steps:\n")
	if len(steps) == 0 {
		b.WriteString("(none yet)\n")
	}
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Capability)
		fmt.Fprintf(&b, "   arguments: %s\n", mustJSON(s.Arguments))
		if s.Error != "" {
			fmt.Fprintf(&b, "   error: %s\n", s.Error)
			continue
		}
		fmt.Fprintf(&b, "   result: %s\n", mustJSON(s.Result))
	}
	b.WriteString("\n")

	if next != nil {
		fmt.Fprintf(&b, "Next: call `%s`. Reply with one JSON object.\n", next.Name)
	} else {
		b.WriteString(`All steps are done. Reply with {"action":"final","response":"..."}.` + "\n")
	}
	return b.String()
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
