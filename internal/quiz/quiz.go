package quiz

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"superengulfing/config"
	"superengulfing/pkg/pattern"
	"superengulfing/pkg/scenario"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDegenerateScenario is returned when no synthesized sequence for a
// request classified as requested within the attempt budget.
var ErrDegenerateScenario = errors.New("degenerate scenario")

// Question is a verified scenario waiting for a guess.
type Question struct {
	ID           string           `json:"id"`
	Request      scenario.Request `json:"request"`
	Bars         []pattern.Bar    `json:"bars"`
	TriggerIndex int              `json:"triggerIndex"`
	Answer       pattern.Result   `json:"answer"`
}

// Prompt returns the bars shown to the player: everything up to and
// including the trigger.
func (q Question) Prompt() []pattern.Bar {
	return q.Bars[:q.TriggerIndex+1]
}

// Guess is the player's reading of the trigger bar.
type Guess struct {
	Kind    scenario.Kind `json:"kind"`
	Plus    bool          `json:"plus"`
	Bullish bool          `json:"bullish"`
}

// Grade reports whether g names the question's pattern. Plus is not graded
// for X-factor questions.
func Grade(q Question, g Guess) bool {
	if g.Kind != q.Request.Kind || g.Bullish != q.Request.Bullish {
		return false
	}
	return q.Request.Kind == scenario.KindX || g.Plus == q.Request.Plus
}

// Scorecard is the running quiz score. It is a value; callers keep it.
type Scorecard struct {
	Asked      int `json:"asked"`
	Correct    int `json:"correct"`
	Streak     int `json:"streak"`
	BestStreak int `json:"bestStreak"`
}

// Record returns the scorecard after one more graded answer.
func (s Scorecard) Record(correct bool) Scorecard {
	s.Asked++
	if !correct {
		s.Streak = 0
		return s
	}
	s.Correct++
	s.Streak++
	s.BestStreak = max(s.BestStreak, s.Streak)
	return s
}

// Generator produces verified questions. Not safe for concurrent use.
type Generator struct {
	synth       *scenario.Synthesizer
	rng         *rand.Rand
	depth       int
	maxAttempts int
	logger      *zap.Logger
}

// NewGenerator builds a generator whose questions all use the given sweep
// depth. The same seed yields the same question sequence.
func NewGenerator(seed uint64, cfg config.ScenarioConfig, depth int, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := scenario.Options{
		BasePrice:  cfg.BasePrice,
		Volatility: cfg.Volatility,
		Start:      cfg.StartTime,
		IntervalMs: cfg.Interval.Milliseconds(),
	}
	return &Generator{
		synth:       scenario.NewSeeded(seed, opts),
		rng:         rand.New(rand.NewPCG(seed^0x5e, seed+1)),
		depth:       depth,
		maxAttempts: max(1, cfg.MaxAttempts),
		logger:      logger,
	}
}

// Next draws a random request and returns a verified question for it. At
// depth 1 every sweep is an X-factor, so only X questions are drawn.
func (g *Generator) Next() (Question, error) {
	kinds := scenario.Kinds
	if g.depth < 2 {
		kinds = []scenario.Kind{scenario.KindX}
	}
	req := scenario.Request{
		Kind:    kinds[g.rng.IntN(len(kinds))],
		Plus:    g.rng.IntN(2) == 1,
		Bullish: g.rng.IntN(2) == 1,
		Depth:   g.depth,
	}
	return g.NextFor(req)
}

// NextFor synthesizes req until the trigger classifies as requested.
func (g *Generator) NextFor(req scenario.Request) (Question, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		bars, err := g.synth.Synthesize(req)
		if err != nil {
			return Question{}, fmt.Errorf("synthesize: %w", err)
		}

		res, ok := scenario.Verify(req, bars)
		if !ok {
			g.logger.Debug("scenario mismatch, regenerating",
				zap.String("kind", string(req.Kind)),
				zap.Bool("plus", req.Plus),
				zap.Bool("bullish", req.Bullish),
				zap.Int("attempt", attempt))
			continue
		}

		return Question{
			ID:           uuid.NewString(),
			Request:      req,
			Bars:         bars,
			TriggerIndex: scenario.TriggerIndex(len(bars)),
			Answer:       res,
		}, nil
	}

	g.logger.Warn("scenario never matched",
		zap.String("kind", string(req.Kind)),
		zap.Int("depth", req.Depth),
		zap.Int("attempts", g.maxAttempts))
	return Question{}, fmt.Errorf("%w: %s plus=%t bullish=%t depth=%d after %d attempts",
		ErrDegenerateScenario, req.Kind, req.Plus, req.Bullish, req.Depth, g.maxAttempts)
}
