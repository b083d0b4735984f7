// Package pipeline answers one question in four fixed steps: resolve the
// question into a plan, extract a result by executing it, validate the
// outcome and respond in prose.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/logging"
	"github.com/KaramelBytes/salesloom-cli/internal/plan"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

// LLM is the completion capability the pipeline needs. *ai.Completer
// implements it.
type LLM interface {
	Available() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// Step computes a delta from the current state. A returned error aborts the
// run; recoverable failures are recorded in the delta instead.
type Step func(ctx context.Context, s State) (Delta, error)

// Pipeline holds the dependencies shared by the steps.
type Pipeline struct {
	LLM        LLM
	Limits     plan.Limits
	TokenLimit int
	Logger     *slog.Logger
}

type namedStep struct {
	name string
	run  Step
}

func (p *Pipeline) steps() []namedStep {
	return []namedStep{
		{"resolve", p.resolve},
		{"extract", p.extract},
		{"validate", p.validate},
		{"respond", p.respond},
	}
}

// Run executes the steps in order and returns the final state.
func (p *Pipeline) Run(ctx context.Context, s State) (State, error) {
	log := logging.OrNop(p.Logger)
	for _, st := range p.steps() {
		start := time.Now()
		d, err := st.run(ctx, s)
		if err != nil {
			return s, fmt.Errorf("%s: %w", st.name, err)
		}
		s = s.Apply(d)
		log.Debug("pipeline step", "step", st.name, "duration", time.Since(start).Round(time.Microsecond), "has_result", s.HasResult, "err", s.Err)
	}
	return s, nil
}

func (p *Pipeline) resolve(ctx context.Context, s State) (Delta, error) {
	if p.LLM == nil || !p.LLM.Available() {
		return Delta{Err: ptr(ai.ErrUnavailable.Error())}, nil
	}
	reply, err := p.LLM.Complete(ctx, planPrompt(s.Summary, s.Question))
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return Delta{Err: ptr(err.Error())}, nil
		}
		return Delta{}, err
	}
	return Delta{Code: ptr(ExtractCode(reply))}, nil
}

// extract never returns an error; every failure becomes the state's error.
func (p *Pipeline) extract(ctx context.Context, s State) (d Delta, err error) {
	if s.HasError() {
		return Delta{}, nil
	}
	if s.Code == "" {
		return Delta{Err: ptr(MsgNoCode)}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			d, err = Delta{Err: ptr(fmt.Sprint(r))}, nil
		}
	}()
	pl, perr := plan.Parse(s.Code)
	if perr != nil {
		return Delta{Err: ptr(perr.Error())}, nil
	}
	res, xerr := plan.Execute(ctx, pl, s.Collection, p.Limits)
	if xerr != nil {
		return Delta{Plan: pl, Err: ptr(xerr.Error())}, nil
	}
	return Delta{Plan: pl, Result: ptr(res.String()), Chart: res.Chart}, nil
}

func (p *Pipeline) validate(_ context.Context, s State) (Delta, error) {
	if s.HasError() {
		return Delta{Messages: []Message{{Role: RoleAssistant, Content: execErrorPrefix + s.Err}}}, nil
	}
	if !s.HasResult {
		return Delta{Result: ptr(MsgDone)}, nil
	}
	return Delta{}, nil
}

func (p *Pipeline) respond(ctx context.Context, s State) (Delta, error) {
	if s.HasError() {
		return Delta{Answer: ptr(errorAnswerPrefix + s.Err)}, nil
	}
	result := utils.TruncateToTokenLimit(s.Result, p.TokenLimit)
	reply, err := p.LLM.Complete(ctx, answerPrompt(s.Question, result))
	if err != nil {
		return Delta{}, err
	}
	return Delta{Answer: ptr(reply)}, nil
}
