package model

import (
	"math"

	"github.com/okian/clarisa/internal/domain/priority"
)

// PipelineStats aggregates open opportunities.
type PipelineStats struct {
	TotalOpportunities int                        `json:"total_oportunidades"`
	TotalValue         float64                    `json:"valor_total_pipeline_usd"`
	WeightedValue      float64                    `json:"valor_ponderado_usd"`
	ByStage            map[priority.Stage]int     `json:"por_etapa"`
	ValueByStage       map[priority.Stage]float64 `json:"valor_por_etapa"`
	ByPriority         map[priority.Label]int     `json:"por_prioridad"`
}

// ComputePipelineStats folds opportunities into stats. Monetary values are
// rounded to cents.
func ComputePipelineStats(opps []Opportunity) PipelineStats {
	st := PipelineStats{
		ByStage:      make(map[priority.Stage]int),
		ValueByStage: make(map[priority.Stage]float64),
		ByPriority:   make(map[priority.Label]int),
	}
	for i := range opps {
		o := &opps[i]
		st.TotalOpportunities++
		st.ByStage[o.Stage]++
		st.ValueByStage[o.Stage] += o.EstimatedValue
		st.ByPriority[o.Priority]++
		st.TotalValue += o.EstimatedValue
		st.WeightedValue += o.EstimatedValue * float64(o.CloseProbability) / 100
	}
	st.TotalValue = roundCents(st.TotalValue)
	st.WeightedValue = roundCents(st.WeightedValue)
	for k, v := range st.ValueByStage {
		st.ValueByStage[k] = roundCents(v)
	}
	return st
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
