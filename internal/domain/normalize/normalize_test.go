package normalize_test

import (
	"testing"

	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/internal/domain/normalize"
	"github.com/okian/benchmarks/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func benchmark() *model.Benchmark {
	return &model.Benchmark{
		Count:  20,
		Mean:   10,
		StdDev: 2,
		Min:    6,
		Max:    14,
		Percentiles: []model.PercentilePoint{
			{Rank: 10, Value: 7},
			{Rank: 25, Value: 8.5},
			{Rank: 50, Value: 10},
			{Rank: 75, Value: 11.5},
			{Rank: 90, Value: 13},
		},
	}
}

func TestNormalizeZScore(t *testing.T) {
	Convey("Given a benchmark with mean 10 and stddev 2", t, func() {
		p := model.Parameter{ID: "p-jump", Type: model.TypeNumeric}
		b := benchmark()

		Convey("When the value equals the mean", func() {
			r, ok := normalize.Normalize(p, model.Number(10), b)

			Convey("Then the z-score is 0 and the percentile is the median", func() {
				So(ok, ShouldBeTrue)
				So(*r.ZScore, ShouldEqual, 0)
				So(*r.Percentile, ShouldEqual, 50)
			})
		})

		Convey("When the value is one stddev above", func() {
			r, ok := normalize.Normalize(p, model.Number(12), b)

			Convey("Then the z-score is 1", func() {
				So(ok, ShouldBeTrue)
				So(*r.ZScore, ShouldEqual, 1)
				So(*r.PerformanceZ, ShouldEqual, 1)
				So(*r.Percentile, ShouldEqual, 80)
			})
		})

		Convey("When the value is null", func() {
			_, ok := normalize.Normalize(p, model.Null(), b)

			Convey("Then nothing is derived", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When there is no benchmark", func() {
			_, ok := normalize.Normalize(p, model.Number(12), nil)

			Convey("Then nothing is derived", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a lower-is-better parameter", t, func() {
		p := model.Parameter{ID: "p-sprint", Type: model.TypeTime, Direction: model.LowerIsBetter}

		Convey("Then the raw z stays and the performance z flips sign", func() {
			r, ok := normalize.Normalize(p, model.Text("0:12"), benchmark())
			So(ok, ShouldBeTrue)
			So(*r.ZScore, ShouldEqual, 1)
			So(*r.PerformanceZ, ShouldEqual, -1)
		})
	})
}

func TestNormalizeZeroSpread(t *testing.T) {
	Convey("Given a benchmark where every value was identical", t, func() {
		p := model.Parameter{ID: "p-1", Type: model.TypeRating}
		b := &model.Benchmark{Count: 3, Mean: 5, StdDev: 0, Min: 5, Max: 5,
			Percentiles: []model.PercentilePoint{{Rank: 50, Value: 5}}}

		Convey("When the value equals the mean", func() {
			r, ok := normalize.Normalize(p, model.Number(5), b)

			Convey("Then the z-score is 0", func() {
				So(ok, ShouldBeTrue)
				So(r.ZScore, ShouldNotBeNil)
				So(*r.ZScore, ShouldEqual, 0)
				So(*r.Percentile, ShouldEqual, 50)
			})
		})

		Convey("When the value differs from the mean", func() {
			r, ok := normalize.Normalize(p, model.Number(6), b)

			Convey("Then the z-score is undefined rather than infinite", func() {
				So(ok, ShouldBeTrue)
				So(r.ZScore, ShouldBeNil)
				So(r.PerformanceZ, ShouldBeNil)
				So(*r.Percentile, ShouldEqual, 100)
			})
		})
	})
}

func TestNormalizeZeroSpreadBeyondStoredPrecision(t *testing.T) {
	Convey("Given a cohort whose identical values carry more than 2 dp", t, func() {
		sum, err := stats.Compute([]float64{3.333, 3.333, 3.333})
		So(err, ShouldBeNil)
		stored := sum.Rounded()
		p := model.Parameter{ID: "p-1", Type: model.TypeNumeric}
		b := &model.Benchmark{Count: stored.Count, Mean: stored.Mean, StdDev: stored.StdDev,
			Min: stored.Min, Max: stored.Max,
			Percentiles: []model.PercentilePoint{{Rank: 50, Value: stored.Mean}}}

		Convey("When a member is scored against the stored mean", func() {
			r, ok := normalize.Normalize(p, model.Number(3.333), b)

			Convey("Then the z-score is 0", func() {
				So(b.Mean, ShouldEqual, 3.33)
				So(b.StdDev, ShouldEqual, 0)
				So(ok, ShouldBeTrue)
				So(r.ZScore, ShouldNotBeNil)
				So(*r.ZScore, ShouldEqual, 0)
			})
		})

		Convey("Then a value off by more than the rounding step stays undefined", func() {
			z, ok := normalize.ZScore(3.34, 3.33, 0)
			So(ok, ShouldBeFalse)
			So(z, ShouldEqual, 0)
		})
	})
}

func TestPercentileRank(t *testing.T) {
	Convey("Given a stored percentile curve", t, func() {
		b := benchmark()

		Convey("Then values outside the sampled range clamp", func() {
			So(normalize.PercentileRank(b, 1), ShouldEqual, 0)
			So(normalize.PercentileRank(b, 100), ShouldEqual, 100)
		})

		Convey("Then min and max anchor ranks 0 and 100", func() {
			So(normalize.PercentileRank(b, 6), ShouldEqual, 0)
			So(normalize.PercentileRank(b, 14), ShouldEqual, 100)
			So(normalize.PercentileRank(b, 6.5), ShouldAlmostEqual, 5, 1e-9)
		})

		Convey("Then ties resolve to the midpoint rank", func() {
			tied := &model.Benchmark{Count: 4, Min: 1, Max: 9, Percentiles: []model.PercentilePoint{
				{Rank: 10, Value: 2}, {Rank: 25, Value: 4}, {Rank: 50, Value: 4}, {Rank: 75, Value: 4}, {Rank: 90, Value: 8},
			}}
			So(normalize.PercentileRank(tied, 4), ShouldEqual, 50)
			So(normalize.PercentileRank(tied, 3), ShouldAlmostEqual, 17.5, 1e-9)
		})
	})
}

func TestNormalizeBands(t *testing.T) {
	Convey("Given a numeric parameter with bands", t, func() {
		p := model.Parameter{ID: "p-1", Type: model.TypeNumeric, Bands: []model.Band{
			{Name: "Below", Max: f64(9.99)},
			{Name: "Above", Min: f64(10)},
		}}

		Convey("Then the band is assigned from the value", func() {
			r, ok := normalize.Normalize(p, model.Number(12), benchmark())
			So(ok, ShouldBeTrue)
			So(*r.Band, ShouldEqual, "Above")
		})
	})

	Convey("Given a choice parameter with bands", t, func() {
		p := model.Parameter{ID: "p-2", Type: model.TypeChoice, Bands: []model.Band{
			{Name: "Dominant right", Match: str("right")},
		}}

		Convey("Then the band is assigned without a benchmark", func() {
			r, ok := normalize.Normalize(p, model.Text("right"), nil)
			So(ok, ShouldBeTrue)
			So(*r.Band, ShouldEqual, "Dominant right")
			So(r.ZScore, ShouldBeNil)
			So(r.Percentile, ShouldBeNil)
		})
	})

	Convey("Given a result", t, func() {
		o := model.Observation{ParameterID: "p-1", ZScore: f64(3)}

		Convey("Then Apply replaces earlier scores", func() {
			normalize.Result{Percentile: f64(40)}.Apply(&o)
			So(o.ZScore, ShouldBeNil)
			So(*o.Percentile, ShouldEqual, 40)
		})
	})
}
