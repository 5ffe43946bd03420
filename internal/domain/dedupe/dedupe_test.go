package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/benchmarks/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When created with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it starts empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a key is recorded for the first time", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(ctx, "c1|a1")

			Convey("Then it is not reported as pending", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And recording it again reports it as pending", func() {
				So(d.SeenAndRecord(ctx, "c1|a1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a different key is independent", func() {
				So(d.SeenAndRecord(ctx, "c1|a2"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})
		})

		Convey("When a pending key is released", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "c1|a1")
			d.Unrecord(ctx, "c1|a1")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "c1|a1"), ShouldBeFalse)
			})
		})

		Convey("When an unknown key is released", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "c1|a1")
			d.Unrecord(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the bounded tracker is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.SeenAndRecord(ctx, "k1")
			d.SeenAndRecord(ctx, "k2")
			d.SeenAndRecord(ctx, "k3")

			Convey("Then the oldest key is forgotten", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "k3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "k2"), ShouldBeTrue)
			})
		})

		Convey("When the tracker is unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 500; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
			}

			Convey("Then every key is kept", func() {
				So(d.Size(), ShouldEqual, 500)
			})
		})
	})
}

func TestInMemoryDeduper_Concurrent(t *testing.T) {
	d := dedupe.NewInMemoryDeduper()
	ctx := context.Background()

	var fresh atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.SeenAndRecord(ctx, "c1|a1") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := fresh.Load(); got != 1 {
		t.Fatalf("expected exactly one caller to record the key, got %d", got)
	}
	if d.Size() != 1 {
		t.Fatalf("expected size 1, got %d", d.Size())
	}
}
