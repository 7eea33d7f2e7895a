package scenario

import (
	"math/rand/v2"

	"superengulfing/pkg/pattern"
)

const (
	// MinContextBars is the shortest context prefix generated before the trigger.
	MinContextBars = 8
	// FollowThroughBars are appended after the trigger for narrative only.
	FollowThroughBars = 2
)

// Options shape the price path. Zero values fall back to defaults.
type Options struct {
	BasePrice  float64 // Starting price, also the mirror pivot for bearish scenarios
	Volatility float64 // Typical bar size; defaults to 0.5% of BasePrice
	Start      int64   // Open time of the first bar in milliseconds
	IntervalMs int64   // Bar interval in milliseconds
}

func (o Options) withDefaults() Options {
	if o.BasePrice <= 0 {
		o.BasePrice = 100
	}
	if o.Volatility <= 0 {
		o.Volatility = o.BasePrice * 0.005
	}
	if o.IntervalMs <= 0 {
		o.IntervalMs = 60_000
	}
	return o
}

// Synthesizer builds bar sequences whose trigger bar classifies as a
// requested pattern. It is not safe for concurrent use because it owns its
// random source.
type Synthesizer struct {
	rng  *rand.Rand
	opts Options
}

// New creates a Synthesizer drawing from rng.
func New(rng *rand.Rand, opts Options) *Synthesizer {
	return &Synthesizer{rng: rng, opts: opts.withDefaults()}
}

// NewSeeded creates a Synthesizer with a deterministic PCG source.
func NewSeeded(seed uint64, opts Options) *Synthesizer {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), opts)
}

// ContextLength is the number of bars generated before the trigger.
func ContextLength(depth int) int {
	return max(MinContextBars, depth+2)
}

// Synthesize returns context bars, one trigger bar and FollowThroughBars
// continuation bars. The trigger sits at TriggerIndex(len(bars)).
//
// Sequences are built on the bullish side and mirrored around BasePrice for
// bearish requests; every classifier rule is symmetric under that mirror.
func (s *Synthesizer) Synthesize(req Request) ([]pattern.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n := ContextLength(req.Depth)
	bars := make([]pattern.Bar, 0, n+1+FollowThroughBars)

	if req.Kind == KindX {
		bars = s.walk(bars, n, req.Kind)
	} else {
		// The last context bar is shaped so the trigger sweeps exactly one bar.
		bars = s.walk(bars, n-1, req.Kind)
		bars = append(bars, s.setup(bars[len(bars)-1], req.Kind == KindRun))
	}

	bars = append(bars, s.trigger(bars, req))
	for i := 0; i < FollowThroughBars; i++ {
		open := bars[len(bars)-1].Close
		bars = append(bars, s.withWicks(open, open+s.between(0.3, 1.0)*s.opts.Volatility))
	}

	if !req.Bullish {
		for i := range bars {
			bars[i] = mirror(bars[i], s.opts.BasePrice)
		}
	}
	for i := range bars {
		bars[i].SequenceID = int64(i + 1)
		bars[i].OpenTime = s.opts.Start + int64(i)*s.opts.IntervalMs
	}
	return bars, nil
}

// walk appends count random-walk bars. RUN context trends up, REV context
// trends down and X context grinds sideways with small bodies.
func (s *Synthesizer) walk(bars []pattern.Bar, count int, kind Kind) []pattern.Bar {
	u := s.opts.Volatility
	price := s.opts.BasePrice

	for i := 0; i < count; i++ {
		var dir, body float64
		switch kind {
		case KindRun:
			dir, body = s.lean(1, 0.7), s.between(0.3, 1.0)*u
		case KindRev:
			dir, body = s.lean(-1, 0.7), s.between(0.3, 1.0)*u
		default:
			dir, body = s.lean(1, 0.5), s.between(0.2, 0.6)*u
		}
		bar := s.withWicks(price, price+dir*body)
		bars = append(bars, bar)
		price = bar.Close
	}
	return bars
}

// setup builds the bar right before the trigger: bullish for RUN, bearish
// for REV, with a low strictly above the bar before it. That gap is the room
// the trigger uses to sweep this bar without sweeping the previous one.
func (s *Synthesizer) setup(before pattern.Bar, bullish bool) pattern.Bar {
	u := s.opts.Volatility
	b := pattern.Bar{Low: before.Low + s.between(0.3, 0.8)*u}
	lower, body, upper := s.between(0.1, 0.5)*u, s.between(0.4, 1.0)*u, s.between(0.1, 0.5)*u

	if bullish {
		b.Open = b.Low + lower
		b.Close = b.Open + body
		b.High = b.Close + upper
	} else {
		b.Close = b.Low + lower
		b.Open = b.Close + body
		b.High = b.Open + upper
	}
	return b
}

// trigger computes the bullish trigger bar from the bars before it.
func (s *Synthesizer) trigger(bars []pattern.Bar, req Request) pattern.Bar {
	u := s.opts.Volatility
	prev := bars[len(bars)-1]
	t := pattern.Bar{Open: prev.Close}

	if req.Kind == KindX {
		floor := prev.Low
		for _, b := range bars[len(bars)-req.Depth:] {
			floor = min(floor, b.Low)
		}
		t.Low = floor - s.between(0.2, 0.6)*u
		if req.Plus {
			t.Close = max(prev.High, t.Open) + s.between(0.2, 1.0)*u
		} else {
			t.Close = t.Open + s.between(1.0, 2.0)*u
		}
	} else {
		gap := prev.Low - bars[len(bars)-2].Low
		t.Low = prev.Low - gap*s.between(0.2, 0.8)

		// RUN must close above the prior close, REV above the prior open.
		ref := prev.Close
		if req.Kind == KindRev {
			ref = prev.Open
		}
		if req.Plus {
			t.Close = prev.High + s.between(0.2, 1.0)*u
		} else {
			t.Close = ref + (prev.High-ref)*s.between(0.25, 0.75)
		}
	}

	t.High = max(t.Open, t.Close) + s.between(0.05, 0.3)*u
	return t
}

func (s *Synthesizer) withWicks(open, close float64) pattern.Bar {
	u := s.opts.Volatility
	return pattern.Bar{
		Open:  open,
		Close: close,
		High:  max(open, close) + s.between(0.1, 0.6)*u,
		Low:   min(open, close) - s.between(0.1, 0.6)*u,
	}
}

// lean returns dir with probability p and -dir otherwise.
func (s *Synthesizer) lean(dir, p float64) float64 {
	if s.rng.Float64() < p {
		return dir
	}
	return -dir
}

func (s *Synthesizer) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// mirror reflects a bar around pivot, turning bullish structure bearish.
func mirror(b pattern.Bar, pivot float64) pattern.Bar {
	return pattern.Bar{
		SequenceID: b.SequenceID,
		OpenTime:   b.OpenTime,
		Open:       2*pivot - b.Open,
		Close:      2*pivot - b.Close,
		High:       2*pivot - b.Low,
		Low:        2*pivot - b.High,
	}
}
