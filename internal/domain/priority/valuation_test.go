package priority_test

import (
	"errors"
	"testing"

	"github.com/okian/clarisa/internal/domain/priority"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEstimatedValue(t *testing.T) {
	Convey("Given the value table", t, func() {
		Convey("Then the extremes match the catalogue", func() {
			So(priority.EstimatedValue(priority.A1), ShouldEqual, 50000.0)
			So(priority.EstimatedValue(priority.B3), ShouldEqual, 7500.0)
			So(priority.EstimatedValue(priority.C3), ShouldEqual, 1500.0)
		})

		Convey("Then values strictly decrease in rank order", func() {
			labels := priority.Labels()
			for i := 1; i < len(labels); i++ {
				So(priority.EstimatedValue(labels[i-1]), ShouldBeGreaterThan, priority.EstimatedValue(labels[i]))
			}
		})

		Convey("Then unknown labels fall back to the C1 value", func() {
			So(priority.EstimatedValue("X9"), ShouldEqual, 5000.0)
		})
	})
}

func TestCloseProbability(t *testing.T) {
	Convey("Given a label and a stage", t, func() {
		Convey("Then the base is scaled and truncated", func() {
			So(priority.CloseProbability(priority.A1, priority.StageNewLead), ShouldEqual, 60)
			So(priority.CloseProbability(priority.B2, priority.StageInitialContact), ShouldEqual, 32)
			So(priority.CloseProbability(priority.C1, priority.StageDeepDiagnosis), ShouldEqual, 22)
			So(priority.CloseProbability(priority.A3, priority.StageActiveConsulting), ShouldEqual, 68)
			So(priority.CloseProbability(priority.C3, priority.StageNegotiation), ShouldEqual, 9)
		})

		Convey("Then open deals never exceed 95", func() {
			So(priority.CloseProbability(priority.A1, priority.StageNegotiation), ShouldEqual, 95)
			for _, l := range priority.Labels() {
				for _, st := range priority.Stages() {
					p := priority.CloseProbability(l, st)
					So(p, ShouldBeLessThanOrEqualTo, 95)
					So(p, ShouldBeGreaterThanOrEqualTo, 0)
				}
			}
		})

		Convey("Then probability never drops along the progression", func() {
			stages := priority.ProgressionStages()
			for _, l := range priority.Labels() {
				for i := 1; i < len(stages); i++ {
					So(priority.CloseProbability(l, stages[i]), ShouldBeGreaterThanOrEqualTo, priority.CloseProbability(l, stages[i-1]))
				}
			}
		})

		Convey("Then stages outside the progression use the base", func() {
			So(priority.CloseProbability(priority.B1, priority.StageWon), ShouldEqual, 30)
			So(priority.CloseProbability(priority.B1, priority.StageNurturing), ShouldEqual, 30)
			So(priority.CloseProbability(priority.B1, "unknown"), ShouldEqual, 30)
		})

		Convey("Then unknown labels use a base of 10", func() {
			So(priority.CloseProbability("", priority.StageNewLead), ShouldEqual, 10)
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given a diagnostic triple", t, func() {
		v := priority.Evaluate(priority.Scores{Urgency: 85, Maturity: 75, Capacity: 90}, priority.StageNewLead)

		Convey("Then label, value and probability are derived together", func() {
			So(v.Label, ShouldEqual, priority.A1)
			So(v.EstimatedValue, ShouldEqual, 50000.0)
			So(v.CloseProbability, ShouldEqual, 60)
		})
	})
}

func TestStages(t *testing.T) {
	Convey("Given the pipeline stages", t, func() {
		Convey("Then there are ten stages and seven in the progression", func() {
			So(len(priority.Stages()), ShouldEqual, 10)
			So(len(priority.ProgressionStages()), ShouldEqual, 7)
			So(priority.ProgressionStages()[6], ShouldEqual, priority.StageNegotiation)
		})

		Convey("Then multipliers run from 1.0 to 1.9", func() {
			So(priority.StageNewLead.Multiplier(), ShouldEqual, 1.0)
			So(priority.StageNegotiation.Multiplier(), ShouldEqual, 1.9)
			So(priority.StageLost.Multiplier(), ShouldEqual, 1.0)
		})

		Convey("Then only won and lost are closed", func() {
			So(priority.StageWon.IsClosed(), ShouldBeTrue)
			So(priority.StageLost.IsClosed(), ShouldBeTrue)
			So(priority.StageNurturing.IsClosed(), ShouldBeFalse)
			So(priority.StageNegotiation.IsClosed(), ShouldBeFalse)
		})

		Convey("Then parsing accepts known ids only", func() {
			st, err := priority.ParseStage("NEGOCIACION")
			So(err, ShouldBeNil)
			So(st, ShouldEqual, priority.StageNegotiation)

			_, err = priority.ParseStage("closing")
			So(errors.Is(err, priority.ErrUnknownStage), ShouldBeTrue)
		})
	})
}
