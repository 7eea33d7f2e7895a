package scenario

import (
	"errors"
	"fmt"

	"superengulfing/pkg/pattern"
)

// Kind is the pattern type a scenario is built to demonstrate.
type Kind string

const (
	KindRun Kind = "RUN"
	KindRev Kind = "REV"
	KindX   Kind = "X"
)

// Kinds lists every supported scenario kind.
var Kinds = []Kind{KindRun, KindRev, KindX}

// ErrInvalidRequest is returned for requests the synthesizer cannot build.
var ErrInvalidRequest = errors.New("invalid scenario request")

// Request describes the classification the final trigger bar must produce.
type Request struct {
	Kind    Kind `json:"kind"`
	Plus    bool `json:"plus"`
	Bullish bool `json:"bullish"`
	Depth   int  `json:"depth"` // X-factor sweep threshold used by the classifier
}

// Validate checks the kind and that the depth is reachable by the sweep
// counter.
func (r Request) Validate() error {
	switch r.Kind {
	case KindRun, KindRev, KindX:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	if r.Depth < 1 || r.Depth > pattern.MaxSweepLookback {
		return fmt.Errorf("%w: depth %d outside 1..%d", ErrInvalidRequest, r.Depth, pattern.MaxSweepLookback)
	}
	return nil
}

// Family returns the base family a RUN or REV request expects. X requests
// accept any family on the requested side, so it returns "".
func (r Request) Family() pattern.Family {
	switch {
	case r.Kind == KindRun && r.Bullish:
		return pattern.RunBull
	case r.Kind == KindRun:
		return pattern.RunBear
	case r.Kind == KindRev && r.Bullish:
		return pattern.RevBull
	case r.Kind == KindRev:
		return pattern.RevBear
	}
	return ""
}

// Strength returns the strength tier the request expects.
func (r Request) Strength() pattern.Strength {
	switch {
	case r.Kind == KindX:
		return pattern.XFactor
	case r.Plus:
		return pattern.Plus
	}
	return pattern.Normal
}

// Matches reports whether a classification satisfies the request. For X
// requests a PLUS request additionally demands the close-beyond-range
// condition.
func Matches(req Request, res pattern.Result, ok bool) bool {
	if !ok || res.Family.IsBullish() != req.Bullish || res.Strength != req.Strength() {
		return false
	}
	if req.Kind == KindX {
		return !req.Plus || res.PlusQualified
	}
	return res.Family == req.Family()
}

// Verify classifies the trigger bar of a synthesized sequence and reports
// whether it matches the request.
func Verify(req Request, bars []pattern.Bar) (pattern.Result, bool) {
	res, ok := pattern.Classify(bars, TriggerIndex(len(bars)), req.Depth)
	return res, Matches(req, res, ok)
}

// TriggerIndex returns the position of the trigger bar in a synthesized
// sequence of length n.
func TriggerIndex(n int) int {
	return n - 1 - FollowThroughBars
}
