// Package session owns the loaded datasets and the conversation history and
// is the error boundary around the pipeline: nothing a question does can
// end the session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/salesloom-cli/internal/chart"
	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
	"github.com/KaramelBytes/salesloom-cli/internal/logging"
	"github.com/KaramelBytes/salesloom-cli/internal/pipeline"
	"github.com/KaramelBytes/salesloom-cli/internal/plan"
)

// Options configures a Session.
type Options struct {
	DataDir  string
	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger
}

// Turn is the outcome of one question.
type Turn struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Plan     string       `json:"plan,omitempty"`
	Parsed   *plan.Plan   `json:"parsed_plan,omitempty"`
	Result   string       `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
	Answer   string       `json:"answer"`
	Chart    *chart.Chart `json:"chart,omitempty"`
	Duration string       `json:"duration"`

	// Failure is the error that aborted the pipeline, if any. The answer
	// already describes it.
	Failure error `json:"-"`
}

// Session is a single conversational analysis session.
type Session struct {
	ID string

	dataDir  string
	pipeline *pipeline.Pipeline
	log      *slog.Logger

	mu         sync.Mutex
	collection *dataset.Collection
	summary    string
	history    []pipeline.Message
}

// New creates a session. Call Reload before asking questions.
func New(o Options) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		dataDir:    o.DataDir,
		pipeline:   o.Pipeline,
		log:        logging.OrNop(o.Logger).With("session", id[:8]),
		collection: dataset.NewCollection(),
		summary:    dataset.Summary(nil),
	}
}

// Reload reads the data directory again and replaces the collection and
// summary wholesale.
func (s *Session) Reload(ctx context.Context) error {
	c, err := dataset.Load(ctx, s.dataDir, dataset.Options{Logger: s.log})
	if err != nil {
		return fmt.Errorf("load datasets: %w", err)
	}
	summary := dataset.Summary(c)
	s.mu.Lock()
	s.collection, s.summary = c, summary
	s.mu.Unlock()
	s.log.Info("datasets loaded", "dir", s.dataDir, "count", c.Len())
	return nil
}

// Collection returns the current datasets.
func (s *Session) Collection() *dataset.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

// Summary returns the dataset summary given to the model.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// History returns a copy of the conversation so far.
func (s *Session) History() []pipeline.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Ask runs one question through the pipeline. Errors and panics are turned
// into an answer; the session stays usable afterwards.
func (s *Session) Ask(ctx context.Context, question string) (turn Turn) {
	start := time.Now()
	turn = Turn{ID: uuid.NewString(), Question: question}

	s.mu.Lock()
	s.history = append(s.history, pipeline.Message{Role: pipeline.RoleUser, Content: question})
	state := pipeline.State{
		History:    append([]pipeline.Message(nil), s.history...),
		Collection: s.collection,
		Summary:    s.summary,
		Question:   question,
	}
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("pipeline panic", "turn", turn.ID, "panic", r)
			turn.Answer = fmt.Sprintf("An error occurred: %v", r)
			turn.Chart = nil
		}
		turn.Duration = time.Since(start).Round(time.Millisecond).String()
		s.mu.Lock()
		s.history = append(s.history, pipeline.Message{Role: pipeline.RoleAssistant, Content: turn.Answer, Chart: turn.Chart})
		s.mu.Unlock()
	}()

	out, err := s.pipeline.Run(ctx, state)
	turn.Plan, turn.Parsed, turn.Error = out.Code, out.Plan, out.Err
	if out.HasResult {
		turn.Result = out.Result
	}
	if err != nil {
		s.log.Warn("question failed", "turn", turn.ID, "err", err)
		turn.Answer = fmt.Sprintf("An error occurred: %v", err)
		turn.Failure = err
		return turn
	}
	turn.Answer, turn.Chart = out.Answer, out.Chart
	s.log.Debug("question answered", "turn", turn.ID, "has_chart", turn.Chart != nil)
	return turn
}
