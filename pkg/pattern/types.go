package pattern

// Bar represents a single fixed-interval OHLC observation.
// Index 0 of a sequence is the oldest bar.
type Bar struct {
	SequenceID int64   `json:"sequenceId"` // Monotonic within a session, identity only
	OpenTime   int64   `json:"openTime"`   // Open time in milliseconds since epoch
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
}

// IsBullish reports whether the bar closed above its open.
func (b Bar) IsBullish() bool { return b.Close > b.Open }

// IsBearish reports whether the bar closed below its open.
func (b Bar) IsBearish() bool { return b.Close < b.Open }

// Family is the base pattern detected on a bar.
type Family string

const (
	RunBull Family = "RUN_BULL"
	RunBear Family = "RUN_BEAR"
	RevBull Family = "REV_BULL"
	RevBear Family = "REV_BEAR"
)

// IsBullish reports whether the family belongs to the bullish side.
func (f Family) IsBullish() bool { return f == RunBull || f == RevBull }

// Base returns the short family name used in labels ("RUN" or "REV").
func (f Family) Base() string {
	switch f {
	case RunBull, RunBear:
		return "RUN"
	case RevBull, RevBear:
		return "REV"
	}
	return ""
}

// Strength is the escalating qualifier attached to a family.
type Strength string

const (
	Normal  Strength = "NORMAL"
	Plus    Strength = "PLUS"
	XFactor Strength = "X_FACTOR"
)

// Result is the classification of one bar against its history.
type Result struct {
	Family        Family   `json:"patternFamily"`
	Strength      Strength `json:"strengthTier"`
	SweepCount    int      `json:"sweepCount,omitempty"` // Set only when Strength is XFactor
	Label         string   `json:"displayLabel"`
	PlusQualified bool     `json:"isPlusQualified"`

	// Standalone marks an X-factor sweep that matched no base family. The
	// family then defaults to RUN_BULL or RUN_BEAR by bar direction.
	Standalone bool `json:"standalone,omitempty"`
}

// Match pairs a classification with the index of the bar it belongs to.
type Match struct {
	Index  int    `json:"index"`
	Result Result `json:"result"`
}
