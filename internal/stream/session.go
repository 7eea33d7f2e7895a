package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"superengulfing/config"
	"superengulfing/internal/quiz"
	"superengulfing/pkg/pattern"
	"superengulfing/pkg/scenario"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoPendingQuestion = errors.New("no pending question")

// writer is the subset of *websocket.Conn a session needs.
type writer interface {
	WriteJSON(v any) error
}

// Session is the state of one websocket connection. Nothing is shared
// between sessions.
type Session struct {
	ID string

	out       writer
	engine    config.EngineConfig
	synthCfg  config.ScenarioConfig
	delay     time.Duration
	rng       *rand.Rand
	questions *quiz.Generator
	score     quiz.Scorecard
	pending   *quiz.Question
	logger    *zap.Logger
}

func NewSession(out writer, cfg *config.Config, seed uint64, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		ID:        id,
		out:       out,
		engine:    cfg.Engine,
		synthCfg:  cfg.Scenario,
		delay:     cfg.Server.BarDelay,
		rng:       rand.New(rand.NewPCG(seed, ^seed)),
		questions: quiz.NewGenerator(seed, cfg.Scenario, cfg.Engine.SweepDepth, logger),
		logger:    logger.With(zap.String("session", id)),
	}
}

// Score returns the session's scorecard.
func (s *Session) Score() quiz.Scorecard {
	return s.score
}

// Handle processes one client message. Operation failures are reported to
// the client; only write failures are returned.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warn("failed to parse client message", zap.Error(err))
		return s.fail(fmt.Errorf("invalid message: %w", err))
	}

	var err error
	switch msg.Op {
	case OpScenario:
		err = s.streamScenario(ctx, msg)
	case OpQuiz:
		err = s.askQuestion(ctx)
	case OpAnswer:
		err = s.grade(msg)
	default:
		err = fmt.Errorf("unknown op %q", msg.Op)
	}

	var we *writeError
	if errors.As(err, &we) {
		return we.err
	}
	if err != nil {
		s.logger.Info("operation failed", zap.String("op", msg.Op), zap.Error(err))
		return s.fail(err)
	}
	return nil
}

func (s *Session) streamScenario(ctx context.Context, msg ClientMessage) error {
	req := scenario.Request{Kind: msg.Kind, Plus: msg.Plus, Bullish: msg.Bullish, Depth: msg.Depth}
	if req.Depth == 0 {
		req.Depth = s.engine.SweepDepth
	}

	seed := s.rng.Uint64()
	if msg.Seed != nil {
		seed = *msg.Seed
	}
	synth := scenario.NewSeeded(seed, scenario.Options{
		BasePrice:  s.synthCfg.BasePrice,
		Volatility: s.synthCfg.Volatility,
		Start:      s.synthCfg.StartTime,
		IntervalMs: s.synthCfg.Interval.Milliseconds(),
	})

	bars, err := synth.Synthesize(req)
	if err != nil {
		return err
	}

	for i := range bars {
		var cls *pattern.Result
		if res, ok := pattern.Classify(bars, i, req.Depth); ok {
			cls = &res
		}
		if err := s.send(ctx, BarMessage{Type: "bar", Index: i, Bar: bars[i], Classification: cls}, i > 0); err != nil {
			return err
		}
	}

	_, verified := scenario.Verify(req, bars)
	s.logger.Debug("scenario streamed",
		zap.String("kind", string(req.Kind)), zap.Uint64("seed", seed), zap.Bool("verified", verified))
	return s.send(ctx, DoneMessage{Type: "done", TriggerIndex: scenario.TriggerIndex(len(bars)), Verified: verified}, false)
}

func (s *Session) askQuestion(ctx context.Context) error {
	q, err := s.questions.Next()
	if err != nil {
		return err
	}
	s.pending = &q

	for i, b := range q.Prompt() {
		if err := s.send(ctx, BarMessage{Type: "bar", Index: i, Bar: b}, i > 0); err != nil {
			return err
		}
	}
	return s.send(ctx, QuestionMessage{Type: "question", ID: q.ID, TriggerIndex: q.TriggerIndex, Depth: q.Request.Depth}, false)
}

func (s *Session) grade(msg ClientMessage) error {
	if s.pending == nil || s.pending.ID != msg.ID {
		return fmt.Errorf("%w: %q", errNoPendingQuestion, msg.ID)
	}
	q := *s.pending
	s.pending = nil

	correct := quiz.Grade(q, quiz.Guess{Kind: msg.Kind, Plus: msg.Plus, Bullish: msg.Bullish})
	s.score = s.score.Record(correct)
	s.logger.Info("answer graded",
		zap.String("question", q.ID), zap.Bool("correct", correct), zap.Int("streak", s.score.Streak))

	return s.write(GradedMessage{Type: "graded", Correct: correct, Request: q.Request, Answer: q.Answer, Score: s.score})
}

// send writes v, first pausing for the bar delay when paced is set.
func (s *Session) send(ctx context.Context, v any, paced bool) error {
	if paced && s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return &writeError{err: ctx.Err()}
		case <-t.C:
		}
	}
	return s.write(v)
}

func (s *Session) write(v any) error {
	if err := s.out.WriteJSON(v); err != nil {
		return &writeError{err: err}
	}
	return nil
}

func (s *Session) fail(err error) error {
	if werr := s.out.WriteJSON(ErrorMessage{Type: "error", Error: err.Error()}); werr != nil {
		return werr
	}
	return nil
}

// writeError marks failures of the connection itself, which end the session.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return "write: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }
