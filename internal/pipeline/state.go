package pipeline

import (
	"github.com/KaramelBytes/salesloom-cli/internal/chart"
	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
	"github.com/KaramelBytes/salesloom-cli/internal/plan"
)

// Roles used in Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation entry. Assistant messages may carry a chart.
type Message struct {
	Role    string       `json:"role"`
	Content string       `json:"content"`
	Chart   *chart.Chart `json:"chart,omitempty"`
}

// State is the per-question record threaded through the steps. It is passed
// by value and only changed through Apply.
type State struct {
	History    []Message
	Collection *dataset.Collection
	Summary    string
	Question   string

	Code      string
	Plan      *plan.Plan
	Result    string
	HasResult bool
	Chart     *chart.Chart
	Err       string
	Messages  []Message
	Answer    string
}

// Delta is the partial update a step returns. Nil fields are left alone;
// Messages are appended.
type Delta struct {
	Code     *string
	Plan     *plan.Plan
	Result   *string
	Chart    *chart.Chart
	Err      *string
	Messages []Message
	Answer   *string
}

// Apply returns a copy of s with d merged in. s is not modified.
func (s State) Apply(d Delta) State {
	out := s
	if d.Code != nil {
		out.Code = *d.Code
	}
	if d.Plan != nil {
		out.Plan = d.Plan
	}
	if d.Result != nil {
		out.Result = *d.Result
		out.HasResult = true
	}
	if d.Chart != nil {
		out.Chart = d.Chart
	}
	if d.Err != nil {
		out.Err = *d.Err
	}
	if len(d.Messages) > 0 {
		msgs := make([]Message, 0, len(s.Messages)+len(d.Messages))
		msgs = append(msgs, s.Messages...)
		out.Messages = append(msgs, d.Messages...)
	}
	if d.Answer != nil {
		out.Answer = *d.Answer
	}
	return out
}

// HasError reports whether a step recorded an error.
func (s State) HasError() bool { return s.Err != "" }

func ptr(s string) *string { return &s }
