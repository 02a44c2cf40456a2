package priority

// Valuation fallbacks and caps.
const (
	defaultEstimatedValue  = 5000.0
	defaultBaseProbability = 10
	maxOpenProbability     = 95
)

var estimatedValues = map[Label]float64{
	A1: 50000, A2: 35000, A3: 25000,
	B1: 15000, B2: 10000, B3: 7500,
	C1: 5000, C2: 3000, C3: 1500,
}

var baseProbabilities = map[Label]int{
	A1: 60, A2: 50, A3: 40,
	B1: 30, B2: 25, B3: 20,
	C1: 15, C2: 10, C3: 5,
}

// Valuation is everything the pipeline derives from a score triple.
type Valuation struct {
	Label            Label   `json:"prioridad"`
	EstimatedValue   float64 `json:"valor_estimado_usd"`
	CloseProbability int     `json:"probabilidad_cierre"`
}

// EstimatedValue returns the base deal value for a label. Unknown labels get
// the C1 value.
func EstimatedValue(l Label) float64 {
	if v, ok := estimatedValues[l]; ok {
		return v
	}
	return defaultEstimatedValue
}

// CloseProbability returns the label's base percentage scaled by the stage
// multiplier, truncated and capped at 95 until the deal is actually closed.
func CloseProbability(l Label, st Stage) int {
	base, ok := baseProbabilities[l]
	if !ok {
		base = defaultBaseProbability
	}
	p := int(float64(base) * st.Multiplier())
	return min(p, maxOpenProbability)
}

// Evaluate classifies s and values the result at stage st.
func Evaluate(s Scores, st Stage) Valuation {
	l := Classify(s)
	return Valuation{
		Label:            l,
		EstimatedValue:   EstimatedValue(l),
		CloseProbability: CloseProbability(l, st),
	}
}
