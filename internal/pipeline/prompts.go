package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/KaramelBytes/salesloom-cli/internal/plan"
)

// Fixed user-facing texts.
const (
	MsgNoCode         = "No code generated."
	MsgDone           = "Done."
	errorAnswerPrefix = "I encountered an error while analyzing the data: "
	execErrorPrefix   = "Error executing code: "
)

func planPrompt(summary, question string) string {
	var b strings.Builder
	b.WriteString("You are a data analyst for a retail business. Answer questions by writing an analysis plan over the datasets below.\n\n")
	b.WriteString("## Datasets\n")
	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n\n## Plan format\n")
	b.WriteString(plan.Reference)
	b.WriteString("\n\n## Example\n")
	b.WriteString("Question: Which are the top 5 categories by revenue, excluding cancelled orders? Plot them.\n")
	b.WriteString("```json\n" + plan.Example + "\n```\n\n")
	b.WriteString("Use only the datasets and columns listed above. Return only the JSON plan.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

func answerPrompt(question, result string) string {
	return "You are a helpful Retail Insights Assistant.\n" +
		"User Query: " + question + "\n" +
		"Analysis Result: " + result + "\n\n" +
		"Answer the user's query based on the analysis result. Be concise and professional."
}

var (
	jsonFence = regexp.MustCompile("(?s)```json[ \\t]*\\n?(.*?)(?:```|$)")
	anyFence  = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\n?(.*?)(?:```|$)")
)

// ExtractCode pulls the plan out of a model reply: the first ```json block,
// else the first fenced block of any kind, else the whole trimmed reply. A
// block cut off before its closing fence runs to the end of the reply.
func ExtractCode(reply string) string {
	if m := jsonFence.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := anyFence.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}
