// Package priority classifies sales opportunities from diagnostic scores.
//
// Everything in this package is a pure function over immutable tables, so it
// can be called from any number of goroutines without coordination.
package priority

import (
	"fmt"
	"strings"
)

// Score bounds and tier thresholds shared by all three dimensions.
const (
	MinScore = 0
	MaxScore = 100

	highThreshold   = 67
	mediumThreshold = 34
)

// Scores is the urgency/maturity/capacity triple produced by the diagnostic
// questionnaire. Each value is expected in [MinScore, MaxScore].
type Scores struct {
	Urgency  int `json:"urgencia"`
	Maturity int `json:"madurez"`
	Capacity int `json:"capacidad"`
}

// Validate reports the first score outside [MinScore, MaxScore].
func (s Scores) Validate() error {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"urgencia", s.Urgency},
		{"madurez", s.Maturity},
		{"capacidad", s.Capacity},
	} {
		if f.value < MinScore || f.value > MaxScore {
			return fmt.Errorf("%s=%d: %w", f.name, f.value, ErrScoreOutOfRange)
		}
	}
	return nil
}

// Clamp returns a copy with every score forced into [MinScore, MaxScore].
func (s Scores) Clamp() Scores {
	return Scores{
		Urgency:  clamp(s.Urgency),
		Maturity: clamp(s.Maturity),
		Capacity: clamp(s.Capacity),
	}
}

func clamp(v int) int {
	return max(MinScore, min(MaxScore, v))
}

// Tier is the coarse band a single score falls into.
type Tier int

// Tier values, ordered low to high.
const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// TierOf bands a score: high at 67 and above, medium from 34 to 66, low below 34.
func TierOf(score int) Tier {
	switch {
	case score >= highThreshold:
		return TierHigh
	case score >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

// Label is one of the nine priority tiers, A1 (most urgent) to C3.
type Label string

// Priority labels in rank order.
const (
	A1 Label = "A1"
	A2 Label = "A2"
	A3 Label = "A3"
	B1 Label = "B1"
	B2 Label = "B2"
	B3 Label = "B3"
	C1 Label = "C1"
	C2 Label = "C2"
	C3 Label = "C3"
)

var labels = [...]Label{A1, A2, A3, B1, B2, B3, C1, C2, C3}

// Labels returns all labels in rank order.
func Labels() []Label {
	out := make([]Label, len(labels))
	copy(out, labels[:])
	return out
}

// ParseLabel parses a label case-insensitively.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if l.Rank() < 0 {
		return "", fmt.Errorf("%q: %w", s, ErrUnknownLabel)
	}
	return l, nil
}

// Rank returns the label's position in rank order, or -1 for unknown labels.
func (l Label) Rank() int {
	for i, v := range labels {
		if v == l {
			return i
		}
	}
	return -1
}

// String implements fmt.Stringer.
func (l Label) String() string { return string(l) }

// Classify maps a score triple to its priority label. Scores are clamped
// into range first, so the function is total over all ints.
func Classify(s Scores) Label {
	s = s.Clamp()
	u, m, c := TierOf(s.Urgency), TierOf(s.Maturity), TierOf(s.Capacity)

	switch {
	case u == TierHigh && (m == TierHigh || c == TierHigh):
		switch {
		case m == TierHigh && c == TierHigh:
			return A1
		case m == TierHigh || c == TierHigh:
			return A2
		default:
			// Unreachable under the guard above.
			return A3
		}

	case u == TierMedium || (m == TierMedium && c == TierMedium):
		switch {
		case u == TierMedium && m == TierMedium && c == TierMedium:
			return B1
		case u == TierMedium:
			return B2
		default:
			return B3
		}

	default:
		switch {
		case u == TierLow && m == TierLow:
			return C3
		case m == TierLow || c == TierLow:
			return C2
		default:
			return C1
		}
	}
}
