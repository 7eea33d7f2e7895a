package pattern

import "fmt"

// MaxSweepLookback caps how many prior bars the sweep counter inspects.
const MaxSweepLookback = 20

// rule is one base-family predicate. Rules are evaluated in slice order and
// the first one that holds decides the family.
type rule struct {
	family Family
	match  func(cur, prev Bar) bool
}

var baseRules = []rule{
	{RunBull, func(cur, prev Bar) bool {
		return cur.IsBullish() && prev.IsBullish() && cur.Low < prev.Low && cur.Close > prev.Close
	}},
	{RevBull, func(cur, prev Bar) bool {
		return cur.IsBullish() && prev.IsBearish() && cur.Low < prev.Low && cur.Close > prev.Open
	}},
	{RunBear, func(cur, prev Bar) bool {
		return cur.IsBearish() && prev.IsBearish() && cur.High > prev.High && cur.Close < prev.Close
	}},
	{RevBear, func(cur, prev Bar) bool {
		return cur.IsBearish() && prev.IsBullish() && cur.High > prev.High && cur.Close < prev.Open
	}},
}

// Classify evaluates bars[index] against the bars before it and returns its
// classification. The boolean is false when the bar carries no pattern.
//
// Only bars[:index+1] are read, so the result for a bar never changes when
// later bars are appended. depth is the X-factor threshold; values below 1
// are treated as 1.
func Classify(bars []Bar, index, depth int) (Result, bool) {
	if index < 1 || index >= len(bars) {
		return Result{}, false
	}
	if depth < 1 {
		depth = 1
	}

	cur, prev := bars[index], bars[index-1]

	var (
		res   Result
		found bool
	)
	for _, r := range baseRules {
		if r.match(cur, prev) {
			res.Family = r.family
			found = true
			break
		}
	}

	if found {
		res.PlusQualified = closesBeyondRange(res.Family, cur, prev)
		res.Strength = Normal
		if res.PlusQualified {
			res.Strength = Plus
		}
	}

	if sweeps := SweepCount(bars, index); sweeps >= depth {
		if !found {
			res.Family = RunBear
			if cur.IsBullish() {
				res.Family = RunBull
			}
			res.PlusQualified = false
			res.Standalone = true
			found = true
		}
		res.Strength = XFactor
		res.SweepCount = sweeps
	}

	if !found {
		return Result{}, false
	}
	res.Label = DisplayLabel(res)
	return res, true
}

// SweepCount returns how many consecutive bars immediately before index had
// their extreme swept by bars[index]: lows for a bullish bar, highs for a
// bearish one. A doji sweeps nothing. The walk stops at the first bar that
// is not swept, after MaxSweepLookback bars, or at the start of the sequence.
func SweepCount(bars []Bar, index int) int {
	if index < 1 || index >= len(bars) {
		return 0
	}
	cur := bars[index]

	var swept func(b Bar) bool
	switch {
	case cur.IsBullish():
		swept = func(b Bar) bool { return cur.Low < b.Low }
	case cur.IsBearish():
		swept = func(b Bar) bool { return cur.High > b.High }
	default:
		return 0
	}

	count := 0
	for k := 1; k <= MaxSweepLookback && index-k >= 0; k++ {
		if !swept(bars[index-k]) {
			break
		}
		count++
	}
	return count
}

// Scan classifies every bar of the sequence and returns the matches in index
// order.
func Scan(bars []Bar, depth int) []Match {
	var out []Match
	for i := 1; i < len(bars); i++ {
		if res, ok := Classify(bars, i, depth); ok {
			out = append(out, Match{Index: i, Result: res})
		}
	}
	return out
}

// DisplayLabel derives the human readable badge for a result, e.g. "RUN",
// "REV+", "RUN (x4)" or "SE x4" for a sweep without a base pattern.
func DisplayLabel(r Result) string {
	base := r.Family.Base()
	switch r.Strength {
	case XFactor:
		if r.Standalone {
			return fmt.Sprintf("SE x%d", r.SweepCount)
		}
		return fmt.Sprintf("%s (x%d)", base, r.SweepCount)
	case Plus:
		return base + "+"
	}
	return base
}

func closesBeyondRange(f Family, cur, prev Bar) bool {
	if f.IsBullish() {
		return cur.Close > prev.High
	}
	return cur.Close < prev.Low
}
