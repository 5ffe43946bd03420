package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/benchmarks/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func strp(s string) *string { return &s }

func TestValue(t *testing.T) {
	Convey("Given raw submitted values in JSON", t, func() {
		var obs struct {
			A model.Value `json:"a"`
			B model.Value `json:"b"`
			C model.Value `json:"c"`
			D model.Value `json:"d"`
		}
		err := json.Unmarshal([]byte(`{"a": 12.5, "b": "01:02.50", "c": null, "d": true}`), &obs)

		Convey("Then each variant is tagged by its JSON shape", func() {
			So(err, ShouldBeNil)
			f, ok := obs.A.Float()
			So(ok, ShouldBeTrue)
			So(f, ShouldEqual, 12.5)

			s, ok := obs.B.Str()
			So(ok, ShouldBeTrue)
			So(s, ShouldEqual, "01:02.50")

			So(obs.C.IsNull(), ShouldBeTrue)
			So(obs.D.Kind(), ShouldEqual, model.KindString)
			So(obs.D.String(), ShouldEqual, "true")
		})

		Convey("And a missing field decodes to null", func() {
			var v struct {
				X model.Value `json:"x"`
			}
			So(json.Unmarshal([]byte(`{}`), &v), ShouldBeNil)
			So(v.X.IsNull(), ShouldBeTrue)
		})

		Convey("And objects are rejected", func() {
			var v model.Value
			So(json.Unmarshal([]byte(`{"k":1}`), &v), ShouldNotBeNil)
		})
	})

	Convey("Given the storage encoding", t, func() {
		for _, v := range []model.Value{model.Null(), model.Number(-0.125), model.Text("n:not a number")} {
			decoded, err := model.DecodeValue(v.Encode())
			So(err, ShouldBeNil)
			So(decoded.Equal(v), ShouldBeTrue)
		}

		_, err := model.DecodeValue("x:1")
		So(err, ShouldNotBeNil)
	})
}

func TestBenchmarkFilter(t *testing.T) {
	Convey("Given benchmarks with and without strata", t, func() {
		whole := &model.Benchmark{Key: model.BenchmarkKey{CohortID: "c1", AssessmentID: "a1", ParameterID: "p1"}}
		u14 := &model.Benchmark{Key: model.BenchmarkKey{CohortID: "c1", AssessmentID: "a1", ParameterID: "p1", AgeGroup: strp("u14")}}

		Convey("An unset stratum filter matches both", func() {
			f := model.BenchmarkFilter{CohortID: "c1"}
			So(f.Matches(whole), ShouldBeTrue)
			So(f.Matches(u14), ShouldBeTrue)
		})

		Convey("A set nil stratum matches only the whole-cohort record", func() {
			f := model.BenchmarkFilter{AgeGroup: model.StratumFilter{Set: true}}
			So(f.Matches(whole), ShouldBeTrue)
			So(f.Matches(u14), ShouldBeFalse)
		})

		Convey("A set value matches that stratum only", func() {
			f := model.BenchmarkFilter{AgeGroup: model.StratumFilter{Set: true, Value: strp("u14")}}
			So(f.Matches(whole), ShouldBeFalse)
			So(f.Matches(u14), ShouldBeTrue)
		})

		Convey("Keys render distinctly for null and empty strata", func() {
			empty := model.BenchmarkKey{CohortID: "c1", AgeGroup: strp("")}
			So(empty.String(), ShouldNotEqual, model.BenchmarkKey{CohortID: "c1"}.String())
		})
	})
}

func TestAgeGroupFor(t *testing.T) {
	Convey("Given ordered age brackets", t, func() {
		groups := []model.AgeGroup{
			{Name: "u12", MinAge: 0, MaxAge: 11},
			{Name: "u15", MinAge: 12, MaxAge: 14},
		}

		name, ok := model.AgeGroupFor(12, groups)
		So(ok, ShouldBeTrue)
		So(name, ShouldEqual, "u15")

		_, ok = model.AgeGroupFor(30, groups)
		So(ok, ShouldBeFalse)
	})
}
