package quiz

import (
	"errors"
	"testing"
	"time"

	"superengulfing/config"
	"superengulfing/pkg/scenario"
)

func testConfig() config.ScenarioConfig {
	return config.ScenarioConfig{
		BasePrice:   100,
		Interval:    time.Minute,
		StartTime:   1_700_000_000_000,
		MaxAttempts: 5,
	}
}

// go test -v --run TestGeneratorNext
func TestGeneratorNext(t *testing.T) {
	gen := NewGenerator(11, testConfig(), 3, nil)
	seen := map[string]bool{}

	for i := 0; i < 60; i++ {
		q, err := gen.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if seen[q.ID] {
			t.Fatalf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true

		if !scenario.Matches(q.Request, q.Answer, true) {
			t.Errorf("answer %+v does not match request %+v", q.Answer, q.Request)
		}
		if got := len(q.Prompt()); got != q.TriggerIndex+1 || got != len(q.Bars)-scenario.FollowThroughBars {
			t.Errorf("prompt length %d, trigger %d, bars %d", got, q.TriggerIndex, len(q.Bars))
		}
	}
}

// go test -v --run TestGeneratorDeterministic
func TestGeneratorDeterministic(t *testing.T) {
	a := NewGenerator(99, testConfig(), 4, nil)
	b := NewGenerator(99, testConfig(), 4, nil)

	for i := 0; i < 10; i++ {
		qa, errA := a.Next()
		qb, errB := b.Next()
		if errA != nil || errB != nil {
			t.Fatalf("Next() errors: %v, %v", errA, errB)
		}
		if qa.Request != qb.Request || qa.Answer != qb.Answer {
			t.Fatalf("question %d differs: %+v vs %+v", i, qa.Request, qb.Request)
		}
		for j := range qa.Bars {
			if qa.Bars[j] != qb.Bars[j] {
				t.Fatalf("question %d bar %d differs", i, j)
			}
		}
	}
}

// go test -v --run TestGeneratorDepthOne
func TestGeneratorDepthOne(t *testing.T) {
	gen := NewGenerator(5, testConfig(), 1, nil)

	for i := 0; i < 20; i++ {
		q, err := gen.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if q.Request.Kind != scenario.KindX {
			t.Errorf("depth 1 drew kind %s", q.Request.Kind)
		}
	}

	_, err := gen.NextFor(scenario.Request{Kind: scenario.KindRun, Bullish: true, Depth: 1})
	if !errors.Is(err, ErrDegenerateScenario) {
		t.Errorf("expected ErrDegenerateScenario, got %v", err)
	}
}

// go test -v --run TestNextForInvalid
func TestNextForInvalid(t *testing.T) {
	gen := NewGenerator(1, testConfig(), 3, nil)
	_, err := gen.NextFor(scenario.Request{Kind: "WEDGE", Depth: 3})
	if !errors.Is(err, scenario.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

// go test -v --run TestGrade
func TestGrade(t *testing.T) {
	run := Question{Request: scenario.Request{Kind: scenario.KindRun, Plus: true, Bullish: true, Depth: 3}}
	x := Question{Request: scenario.Request{Kind: scenario.KindX, Plus: false, Bullish: false, Depth: 3}}

	tests := []struct {
		name string
		q    Question
		g    Guess
		want bool
	}{
		{"exact", run, Guess{Kind: scenario.KindRun, Plus: true, Bullish: true}, true},
		{"missing plus", run, Guess{Kind: scenario.KindRun, Plus: false, Bullish: true}, false},
		{"wrong side", run, Guess{Kind: scenario.KindRun, Plus: true, Bullish: false}, false},
		{"wrong kind", run, Guess{Kind: scenario.KindRev, Plus: true, Bullish: true}, false},
		{"x ignores plus", x, Guess{Kind: scenario.KindX, Plus: true, Bullish: false}, true},
		{"x wrong side", x, Guess{Kind: scenario.KindX, Bullish: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Grade(tt.q, tt.g); got != tt.want {
				t.Errorf("Grade() = %v, want %v", got, tt.want)
			}
		})
	}
}

// go test -v --run TestScorecardRecord
func TestScorecardRecord(t *testing.T) {
	var s Scorecard
	for _, c := range []bool{true, true, false, true, true, true, false} {
		s = s.Record(c)
	}
	want := Scorecard{Asked: 7, Correct: 5, Streak: 0, BestStreak: 3}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}
