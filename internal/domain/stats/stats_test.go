package stats_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/benchmarks/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompute(t *testing.T) {
	Convey("Given a textbook sample", t, func() {
		values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

		Convey("When population statistics are computed", func() {
			s, err := stats.Compute(values)

			Convey("Then mean and stddev divide by n", func() {
				So(err, ShouldBeNil)
				So(s.Count, ShouldEqual, 8)
				So(s.Mean, ShouldAlmostEqual, 5.0, 1e-9)
				So(s.StdDev, ShouldAlmostEqual, 2.0, 1e-9)
				So(s.Min, ShouldEqual, 2)
				So(s.Max, ShouldEqual, 9)
			})
		})
	})

	Convey("Given values with NaN and infinities", t, func() {
		values := []float64{math.NaN(), 1, math.Inf(1), 3, math.Inf(-1)}

		Convey("Then only the finite ones are counted", func() {
			s, err := stats.Compute(values)
			So(err, ShouldBeNil)
			So(s.Count, ShouldEqual, 2)
			So(s.Mean, ShouldAlmostEqual, 2.0, 1e-9)
		})
	})

	Convey("Given no finite values", t, func() {
		Convey("Then ErrAllNull is returned", func() {
			_, err := stats.Compute([]float64{math.NaN()})
			So(errors.Is(err, stats.ErrAllNull), ShouldBeTrue)
			_, err = stats.Compute(nil)
			So(errors.Is(err, stats.ErrAllNull), ShouldBeTrue)
		})
	})

	Convey("Given a single value", t, func() {
		s, err := stats.Compute([]float64{7})

		Convey("Then the spread is zero", func() {
			So(err, ShouldBeNil)
			So(s.StdDev, ShouldEqual, 0)
			So(s.Mean, ShouldEqual, 7)
		})
	})
}

func TestRounded(t *testing.T) {
	Convey("Given a summary with long fractions", t, func() {
		s := stats.Summary{Count: 3, Mean: 1.23456, StdDev: 0.005, Min: 1.001, Max: 9.999}

		Convey("Then Rounded keeps two decimals", func() {
			r := s.Rounded()
			So(r.Count, ShouldEqual, 3)
			So(r.Mean, ShouldEqual, 1.23)
			So(r.StdDev, ShouldEqual, 0.01)
			So(r.Min, ShouldEqual, 1.0)
			So(r.Max, ShouldEqual, 10.0)
		})
	})
}

func TestPercentiles(t *testing.T) {
	Convey("Given five evenly spaced values", t, func() {
		sorted := []float64{10, 20, 30, 40, 50}

		Convey("When the default ranks are interpolated", func() {
			points := stats.Percentiles(sorted, nil)

			Convey("Then each point follows the inclusive method", func() {
				So(points, ShouldHaveLength, 5)
				want := map[int]float64{10: 14, 25: 20, 50: 30, 75: 40, 90: 46}
				for _, p := range points {
					So(p.Value, ShouldAlmostEqual, want[p.Rank], 1e-9)
				}
			})
		})

		Convey("When the extremes are requested", func() {
			points := stats.Percentiles(sorted, []int{100, 0})

			Convey("Then they clamp to min and max in rank order", func() {
				So(points, ShouldHaveLength, 2)
				So(points[0].Rank, ShouldEqual, 0)
				So(points[0].Value, ShouldEqual, 10)
				So(points[1].Rank, ShouldEqual, 100)
				So(points[1].Value, ShouldEqual, 50)
			})
		})

		Convey("When ranks repeat", func() {
			points := stats.Percentiles(sorted, []int{50, 50, 25})

			Convey("Then duplicates are dropped", func() {
				So(points, ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given an unsorted sample", t, func() {
		sorted := stats.Sorted([]float64{9, 1, 5, math.NaN(), 3, 7, 2})

		Convey("Then the curve is non-decreasing", func() {
			points := stats.Percentiles(sorted, []int{0, 10, 25, 50, 75, 90, 100})
			for i := 1; i < len(points); i++ {
				So(points[i].Value, ShouldBeGreaterThanOrEqualTo, points[i-1].Value)
			}
		})
	})

	Convey("Given a single value", t, func() {
		Convey("Then every rank returns it", func() {
			for _, p := range stats.Percentiles([]float64{7}, nil) {
				So(p.Value, ShouldEqual, 7)
			}
		})
	})

	Convey("Given no values", t, func() {
		Convey("Then no points are produced", func() {
			So(stats.Percentiles(nil, nil), ShouldBeNil)
		})
	})
}
