package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/benchmarks/internal/adapters/http/api"
	"github.com/okian/benchmarks/internal/adapters/repository"
	service "github.com/okian/benchmarks/internal/app"
	"github.com/okian/benchmarks/internal/domain/model"
	"github.com/okian/benchmarks/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const assessmentJSON = `{
  "id": "combine",
  "name": "Combine",
  "parameters": [
    {"id": "jump", "name": "Vertical jump", "unit": "cm", "type": "numeric",
     "bands": [{"name": "Low", "max": 5}, {"name": "High", "min": 5}]},
    {"id": "sprint", "name": "Sprint", "type": "time", "direction": "lower_is_better"}
  ]
}`

var jumps = []float64{2, 4, 4, 4, 5, 5, 7, 9}

func entryJSON(athlete string, jump any) string {
	b, _ := json.Marshal(map[string]any{
		"cohort_id":     "spring",
		"assessment_id": "combine",
		"athlete_id":    athlete,
		"gender":        "f",
		"observations": []map[string]any{
			{"parameter_id": "jump", "value": jump},
			{"parameter_id": "sprint", "value": "0:11"},
		},
	})
	return string(b)
}

type harness struct {
	svc     *service.Service
	mux     *http.ServeMux
	entries []string
}

func newHarness(deps func(*service.Service) api.Dependencies) *harness {
	svc := service.New(repository.NewMemoryStore(),
		service.WithLogger(logger.Nop()),
		service.WithAutoRecalculate(false),
	)
	mux := http.NewServeMux()
	var d api.Dependencies = svc
	if deps != nil {
		d = deps(svc)
	}
	api.NewServer(d, logger.Nop()).Register(context.Background(), mux)
	return &harness{svc: svc, mux: mux}
}

func (h *harness) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (h *harness) seed() {
	if w, _ := h.do(http.MethodPost, "/assessments", assessmentJSON); w.Code != http.StatusCreated {
		panic(fmt.Sprintf("create assessment: %d %s", w.Code, w.Body.String()))
	}
	if w, _ := h.do(http.MethodPost, "/cohorts", `{"id":"spring","name":"Spring camp"}`); w.Code != http.StatusCreated {
		panic(fmt.Sprintf("create cohort: %d", w.Code))
	}
	for i, j := range jumps {
		w, out := h.do(http.MethodPost, "/entries", entryJSON(fmt.Sprintf("a%d", i), j))
		if w.Code != http.StatusCreated {
			panic(fmt.Sprintf("submit entry: %d %s", w.Code, w.Body.String()))
		}
		h.entries = append(h.entries, out["id"].(string))
	}
}

func TestAPI_Catalog(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := newHarness(nil)

		Convey("When an assessment is created and read back", func() {
			w, _ := h.do(http.MethodPost, "/assessments", assessmentJSON)
			g, out := h.do(http.MethodGet, "/assessments/combine", "")

			Convey("Then it round trips", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(g.Code, ShouldEqual, http.StatusOK)
				So(out["name"], ShouldEqual, "Combine")
				So(len(out["parameters"].([]any)), ShouldEqual, 2)
			})
		})

		Convey("When an invalid assessment is posted", func() {
			w, out := h.do(http.MethodPost, "/assessments", `{"name":""}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(out["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the body is not JSON", func() {
			w, out := h.do(http.MethodPost, "/cohorts", `{`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(out["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When an unknown cohort is read", func() {
			w, out := h.do(http.MethodGet, "/cohorts/autumn", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(out["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When a route is called with the wrong method", func() {
			w, _ := h.do(http.MethodDelete, "/assessments/combine", "")

			Convey("Then the method is not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestAPI_Entries(t *testing.T) {
	Convey("Given an API server with a seeded cohort", t, func() {
		h := newHarness(nil)
		h.seed()

		Convey("When an entry has a value of the wrong type", func() {
			w, out := h.do(http.MethodPost, "/entries", entryJSON("bad", "tall"))

			Convey("Then it is rejected with per-observation details", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(out["code"], ShouldEqual, "type_mismatch")
				details := out["details"].([]any)
				So(len(details), ShouldEqual, 1)
				So(details[0].(map[string]any)["parameter_id"], ShouldEqual, "jump")
			})
		})

		Convey("When an entry references an unknown cohort", func() {
			body := `{"cohort_id":"autumn","assessment_id":"combine","athlete_id":"x","observations":[]}`
			w, _ := h.do(http.MethodPost, "/entries", body)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When entries are submitted in bulk with one bad entry", func() {
			body := `{"entries":[` + entryJSON("b1", 3) + `,` + entryJSON("b2", "x") + `,` + entryJSON("b3", 6) + `]}`
			w, out := h.do(http.MethodPost, "/entries/bulk", body)

			Convey("Then the good ones are stored and the bad one reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["created"], ShouldEqual, 2)
				failed := out["failed"].([]any)
				So(len(failed), ShouldEqual, 1)
				f := failed[0].(map[string]any)
				So(f["index"], ShouldEqual, 1)
				So(f["error"].(map[string]any)["code"], ShouldEqual, "type_mismatch")
			})
		})

		Convey("When a bulk request is empty", func() {
			w, _ := h.do(http.MethodPost, "/entries/bulk", `{"entries":[]}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an entry is read and updated", func() {
			id := h.entries[0]
			g, got := h.do(http.MethodGet, "/entries/"+id, "")
			u, updated := h.do(http.MethodPut, "/entries/"+id, entryJSON("a0", 3))

			Convey("Then both succeed", func() {
				So(g.Code, ShouldEqual, http.StatusOK)
				So(got["athlete_id"], ShouldEqual, "a0")
				So(u.Code, ShouldEqual, http.StatusOK)
				obs := updated["observations"].([]any)
				So(obs[0].(map[string]any)["value"], ShouldEqual, 3)
				So(obs[0].(map[string]any)["raw_value"], ShouldEqual, 3)
			})
		})
	})
}

func TestAPI_Benchmarks(t *testing.T) {
	Convey("Given an API server with a seeded cohort", t, func() {
		h := newHarness(nil)
		h.seed()

		Convey("When benchmarks are calculated without a body", func() {
			w, out := h.do(http.MethodPost, "/cohorts/spring/benchmarks", "")

			Convey("Then every quantifiable parameter is created", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["created"], ShouldEqual, 2)
				So(out["updated"], ShouldEqual, 0)
			})

			Convey("And they can be listed with filters", func() {
				l, list := h.do(http.MethodGet, "/benchmarks?cohort_id=spring&parameter_id=jump", "")
				So(l.Code, ShouldEqual, http.StatusOK)
				So(list["count"], ShouldEqual, 1)
				b := list["benchmarks"].([]any)[0].(map[string]any)
				So(b["mean"], ShouldEqual, 5)
				So(b["std_dev"], ShouldEqual, 2)

				_, whole := h.do(http.MethodGet, "/benchmarks?cohort_id=spring&gender=", "")
				So(whole["count"], ShouldEqual, 2)
				_, strat := h.do(http.MethodGet, "/benchmarks?cohort_id=spring&gender=f", "")
				So(strat["count"], ShouldEqual, 0)
			})

			Convey("And an entry can be normalized", func() {
				w, out := h.do(http.MethodPost, "/entries/"+h.entries[6]+"/normalize", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				jump := out["observations"].([]any)[0].(map[string]any)
				So(jump["z_score"], ShouldEqual, 1)
				So(jump["band"], ShouldEqual, "High")
			})

			Convey("And they can be deleted for the cohort", func() {
				d, out := h.do(http.MethodDelete, "/benchmarks?cohort_id=spring", "")
				So(d.Code, ShouldEqual, http.StatusOK)
				So(out["deleted"], ShouldEqual, 2)
			})
		})

		Convey("When a calculation is filtered to a stratum without data", func() {
			w, out := h.do(http.MethodPost, "/cohorts/spring/benchmarks", `{"gender":"m"}`)

			Convey("Then it reports no data", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(out["code"], ShouldEqual, "no_data")
			})
		})

		Convey("When the cohort does not exist", func() {
			w, _ := h.do(http.MethodPost, "/cohorts/autumn/benchmarks", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When query parameters are malformed", func() {
			bad, _ := h.do(http.MethodGet, "/benchmarks?limit=ten", "")
			neg, _ := h.do(http.MethodGet, "/benchmarks?limit=-1", "")
			del, _ := h.do(http.MethodDelete, "/benchmarks", "")

			Convey("Then they are bad requests", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(neg.Code, ShouldEqual, http.StatusBadRequest)
				So(del.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unknown entry is normalized", func() {
			w, _ := h.do(http.MethodPost, "/entries/ghost/normalize", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestAPI_Operational(t *testing.T) {
	Convey("Given an API server", t, func() {
		h := newHarness(nil)

		Convey("When health, stats and metrics are requested", func() {
			hw, health := h.do(http.MethodGet, "/healthz", "")
			sw, stats := h.do(http.MethodGet, "/stats", "")
			mw, _ := h.do(http.MethodGet, "/metrics", "")

			Convey("Then they all answer", func() {
				So(hw.Code, ShouldEqual, http.StatusOK)
				So(health["status"], ShouldEqual, "ok")
				So(sw.Code, ShouldEqual, http.StatusOK)
				So(stats["started"], ShouldEqual, false)
				So(mw.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

type failingDeps struct {
	*service.Service
}

func (failingDeps) SubmitEntry(context.Context, service.EntryInput) (model.Entry, error) {
	return model.Entry{}, fmt.Errorf("submit: %w", service.ErrBusy)
}

func (failingDeps) GetBenchmarks(context.Context, model.BenchmarkFilter) ([]model.Benchmark, error) {
	return nil, errors.New("disk on fire")
}

func (failingDeps) Ping(context.Context) error {
	return errors.New("store unavailable")
}

func TestAPI_FailureMapping(t *testing.T) {
	Convey("Given an API server over failing dependencies", t, func() {
		h := newHarness(func(s *service.Service) api.Dependencies { return failingDeps{s} })

		Convey("When the recalculation queue is full", func() {
			w, out := h.do(http.MethodPost, "/entries", entryJSON("a", 1))

			Convey("Then the client is told to back off", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(out["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the store fails", func() {
			w, out := h.do(http.MethodGet, "/benchmarks", "")
			hw, _ := h.do(http.MethodGet, "/healthz", "")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(out["code"], ShouldEqual, "internal_error")
				So(hw.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both matchable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrBackpressure).Error(), ShouldEqual, "api.op: backpressure")
		})
	})
}
