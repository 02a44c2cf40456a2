package priority_test

import (
	"errors"
	"testing"

	"github.com/okian/clarisa/internal/domain/priority"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTierOf(t *testing.T) {
	Convey("Given the tier thresholds", t, func() {
		Convey("Then boundaries fall into the documented bands", func() {
			So(priority.TierOf(0), ShouldEqual, priority.TierLow)
			So(priority.TierOf(33), ShouldEqual, priority.TierLow)
			So(priority.TierOf(34), ShouldEqual, priority.TierMedium)
			So(priority.TierOf(66), ShouldEqual, priority.TierMedium)
			So(priority.TierOf(67), ShouldEqual, priority.TierHigh)
			So(priority.TierOf(100), ShouldEqual, priority.TierHigh)
		})

		Convey("Then tiers render as words", func() {
			So(priority.TierLow.String(), ShouldEqual, "low")
			So(priority.TierMedium.String(), ShouldEqual, "medium")
			So(priority.TierHigh.String(), ShouldEqual, "high")
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given score triples", t, func() {
		cases := []struct {
			u, m, c int
			want    priority.Label
		}{
			{100, 100, 100, priority.A1},
			{70, 70, 0, priority.A2},
			{70, 0, 70, priority.A2},
			{70, 50, 90, priority.A2},
			{50, 50, 50, priority.B1},
			{50, 90, 10, priority.B2},
			{50, 0, 0, priority.B2},
			{90, 50, 50, priority.B3},
			{10, 50, 50, priority.B3},
			{0, 0, 0, priority.C3},
			{10, 10, 90, priority.C3},
			{10, 80, 10, priority.C2},
			{100, 0, 0, priority.C2},
			{90, 50, 0, priority.C2},
			{10, 80, 80, priority.C1},
			{10, 50, 80, priority.C1},
		}

		Convey("Then each maps to its label", func() {
			for _, tc := range cases {
				got := priority.Classify(priority.Scores{Urgency: tc.u, Maturity: tc.m, Capacity: tc.c})
				So(got, ShouldEqual, tc.want)
			}
		})

		Convey("Then the rule-1 fallback never fires", func() {
			seen := false
			for u := 0; u <= 100; u++ {
				for m := 0; m <= 100; m++ {
					for c := 0; c <= 100; c++ {
						if priority.Classify(priority.Scores{Urgency: u, Maturity: m, Capacity: c}) == priority.A3 {
							seen = true
						}
					}
				}
			}
			So(seen, ShouldBeFalse)
		})
	})

	Convey("Given every triple in range", t, func() {
		Convey("Then classification is total and deterministic", func() {
			valid := true
			stable := true
			for u := 0; u <= 100; u++ {
				for m := 0; m <= 100; m++ {
					for c := 0; c <= 100; c++ {
						s := priority.Scores{Urgency: u, Maturity: m, Capacity: c}
						l := priority.Classify(s)
						if l.Rank() < 0 {
							valid = false
						}
						if priority.Classify(s) != l {
							stable = false
						}
					}
				}
			}
			So(valid, ShouldBeTrue)
			So(stable, ShouldBeTrue)
		})

		Convey("Then triples with identical tiers share a label", func() {
			a := priority.Classify(priority.Scores{Urgency: 67, Maturity: 34, Capacity: 100})
			b := priority.Classify(priority.Scores{Urgency: 99, Maturity: 66, Capacity: 67})
			So(a, ShouldEqual, b)
		})
	})

	Convey("Given out-of-range scores", t, func() {
		Convey("Then they are clamped before classification", func() {
			So(priority.Classify(priority.Scores{Urgency: 500, Maturity: 101, Capacity: 1000}), ShouldEqual, priority.A1)
			So(priority.Classify(priority.Scores{Urgency: -5, Maturity: -1, Capacity: -100}), ShouldEqual, priority.C3)
		})
	})
}

func TestScores(t *testing.T) {
	Convey("Given a score triple", t, func() {
		Convey("When all values are in range", func() {
			So(priority.Scores{Urgency: 0, Maturity: 50, Capacity: 100}.Validate(), ShouldBeNil)
		})

		Convey("When a value is out of range", func() {
			err := priority.Scores{Urgency: 10, Maturity: 101, Capacity: 5}.Validate()

			Convey("Then validation names the field", func() {
				So(errors.Is(err, priority.ErrScoreOutOfRange), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "madurez")
			})
		})

		Convey("When clamping", func() {
			got := priority.Scores{Urgency: -3, Maturity: 40, Capacity: 140}.Clamp()
			So(got, ShouldResemble, priority.Scores{Urgency: 0, Maturity: 40, Capacity: 100})
		})
	})
}

func TestLabels(t *testing.T) {
	Convey("Given the label set", t, func() {
		all := priority.Labels()

		Convey("Then there are nine labels in rank order", func() {
			So(len(all), ShouldEqual, 9)
			So(all[0], ShouldEqual, priority.A1)
			So(all[8], ShouldEqual, priority.C3)
			for i, l := range all {
				So(l.Rank(), ShouldEqual, i)
			}
		})

		Convey("Then the returned slice is a copy", func() {
			all[0] = "ZZ"
			So(priority.Labels()[0], ShouldEqual, priority.A1)
		})

		Convey("Then parsing is case-insensitive", func() {
			l, err := priority.ParseLabel(" b2 ")
			So(err, ShouldBeNil)
			So(l, ShouldEqual, priority.B2)

			_, err = priority.ParseLabel("D1")
			So(errors.Is(err, priority.ErrUnknownLabel), ShouldBeTrue)
		})
	})
}
