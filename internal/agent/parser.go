package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"leadflow/internal/llm"
)

type ActionKind string

const (
	ActionCall  ActionKind = "call"
	ActionFinal ActionKind = "final"
)

// Action is one planner decision.
type Action struct {
	Kind      ActionKind             `json:"action"`
	Tool      string                 `json:"tool,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Response  string                 `json:"response,omitempty"`
}

// ParseAction turns raw planner output into an Action. A missing "action"
// is inferred from the presence of a tool or a response.
func ParseAction(raw string) (Action, error) {
	object, err := llm.ExtractJSON(raw)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrUnparseableAction, err)
	}

	var action Action
	if err := json.Unmarshal([]byte(object), &action); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrUnparseableAction, err)
	}

	action.Kind = ActionKind(strings.ToLower(strings.TrimSpace(string(action.Kind))))
	action.Tool = strings.TrimSpace(action.Tool)
	if action.Kind == "" {
		switch {
		case action.Tool != "":
			action.Kind = ActionCall
		case action.Response != "":
			action.Kind = ActionFinal
		}
	}

	switch action.Kind {
	case ActionCall:
		if action.Tool == "" {
			return Action{}, fmt.Errorf("%w: call without a tool", ErrUnparseableAction)
		}
		if action.Arguments == nil {
			action.Arguments = map[string]interface{}{}
		}
	case ActionFinal:
		if strings.TrimSpace(action.Response) == "" {
			return Action{}, fmt.Errorf("%w: final without a response", ErrUnparseableAction)
		}
	default:
		return Action{}, fmt.Errorf("%w: unknown action %q", ErrUnparseableAction, action.Kind)
	}
	return action, nil
}
