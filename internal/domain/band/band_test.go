package band_test

import (
	"testing"

	"github.com/okian/benchmarks/internal/domain/band"
	"github.com/okian/benchmarks/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func TestClassifyNumeric(t *testing.T) {
	Convey("Given overlapping numeric bands", t, func() {
		p := model.Parameter{
			ID:   "p-1",
			Type: model.TypeNumeric,
			Bands: []model.Band{
				{Name: "Low", Min: f64(0), Max: f64(10)},
				{Name: "Mid", Min: f64(5), Max: f64(15)},
				{Name: "High", Min: f64(15)},
			},
		}

		Convey("When a value falls in both of the first two", func() {
			name, ok := band.Classify(p, model.Number(7))

			Convey("Then the first declared band wins", func() {
				So(ok, ShouldBeTrue)
				So(name, ShouldEqual, "Low")
			})
		})

		Convey("When a value sits on a bound", func() {
			low, _ := band.Classify(p, model.Number(10))
			high, _ := band.Classify(p, model.Number(15))

			Convey("Then bounds are inclusive", func() {
				So(low, ShouldEqual, "Low")
				So(high, ShouldEqual, "Mid")
			})
		})

		Convey("When a value is only covered by an open band", func() {
			name, ok := band.Classify(p, model.Number(99))

			Convey("Then the missing bound is unbounded", func() {
				So(ok, ShouldBeTrue)
				So(name, ShouldEqual, "High")
			})
		})

		Convey("When a value is below every band", func() {
			_, ok := band.Classify(p, model.Number(-1))

			Convey("Then nothing is returned", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the value is null", func() {
			_, ok := band.Classify(p, model.Null())

			Convey("Then nothing is returned", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestClassifyTime(t *testing.T) {
	Convey("Given a time parameter with sprint bands", t, func() {
		p := model.Parameter{
			ID:   "p-sprint",
			Type: model.TypeTime,
			Bands: []model.Band{
				{Name: "Elite", Max: f64(11)},
				{Name: "Good", Min: f64(11), Max: f64(13)},
			},
		}

		Convey("Then clock strings are converted before the range check", func() {
			name, ok := band.Classify(p, model.Text("0:12.40"))
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, "Good")
		})

		Convey("Then a malformed clock string does not classify", func() {
			_, ok := band.Classify(p, model.Text("soon"))
			So(ok, ShouldBeFalse)
		})
	})
}

func TestClassifyChoice(t *testing.T) {
	Convey("Given a choice parameter with enumerated bands", t, func() {
		p := model.Parameter{
			ID:   "p-foot",
			Type: model.TypeChoice,
			Bands: []model.Band{
				{Name: "Right footed", Match: str("right")},
				{Name: "Left footed", Match: str("left")},
				{Name: "Range only", Min: f64(0)},
			},
		}

		Convey("Then an exact match is classified", func() {
			name, ok := band.Classify(p, model.Text("left"))
			So(ok, ShouldBeTrue)
			So(name, ShouldEqual, "Left footed")
		})

		Convey("Then matching is case sensitive", func() {
			_, ok := band.Classify(p, model.Text("Left"))
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a parameter without bands", t, func() {
		p := model.Parameter{ID: "p-2", Type: model.TypeNumeric}

		Convey("Then no default band is invented", func() {
			_, ok := band.Classify(p, model.Number(1))
			So(ok, ShouldBeFalse)
		})
	})
}
