package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/formcheck/formcheck/pkg/types"
)

func rec(id string, score int, valid bool) *types.AnalysisRecord {
	return &types.AnalysisRecord{SessionID: id, Exercise: "default", FormScore: score, Valid: valid}
}

func errRec(id, msg string) *types.AnalysisRecord {
	return &types.AnalysisRecord{SessionID: id, ErrorMessage: msg}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(rec("s-1", 90, true))

	e, ok := st.Get("s-1")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Record == nil || e.Record.SessionID != "s-1" {
		t.Errorf("Record: got %+v, want session s-1", e.Record)
	}
	if e.Frames != 1 || e.ValidFrames != 1 || e.Errors != 0 {
		t.Errorf("counters: got frames=%d valid=%d errors=%d", e.Frames, e.ValidFrames, e.Errors)
	}
}

func TestGet_Missing(t *testing.T) {
	st := New(5 * time.Minute)
	if _, ok := st.Get("unknown"); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_KeepsLatestAndCounts(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(rec("s", 90, true))
	st.Put(rec("s", 40, false))
	st.Put(rec("s", 75, true))

	e, _ := st.Get("s")
	if e.Record.FormScore != 75 {
		t.Errorf("FormScore: got %d, want 75", e.Record.FormScore)
	}
	if e.Frames != 3 || e.ValidFrames != 2 {
		t.Errorf("counters: got frames=%d valid=%d, want 3/2", e.Frames, e.ValidFrames)
	}
	if got := e.ValidRatio(); got < 0.666 || got > 0.667 {
		t.Errorf("ValidRatio: got %v, want 2/3", got)
	}
}

func TestPut_ErrorRecordKeepsAnalysis(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(rec("s", 88, true))
	st.Put(errRec("s", "decode frame: bad json"))

	e, _ := st.Get("s")
	if e.Record == nil || e.Record.FormScore != 88 {
		t.Errorf("Record: got %+v, want last analysis kept", e.Record)
	}
	if e.Errors != 1 || e.LastError != "decode frame: bad json" {
		t.Errorf("errors: got %d %q", e.Errors, e.LastError)
	}
	if e.Frames != 1 {
		t.Errorf("Frames: got %d, want 1", e.Frames)
	}

	st.Put(rec("s", 90, true))
	e, _ = st.Get("s")
	if e.LastError != "" {
		t.Errorf("LastError not cleared: %q", e.LastError)
	}
}

func TestPut_ErrorBeforeFirstAnalysis(t *testing.T) {
	st := New(5 * time.Minute)
	st.Put(errRec("s", "source down"))

	e, ok := st.Get("s")
	if !ok {
		t.Fatal("Get: expected entry")
	}
	if e.Record != nil {
		t.Errorf("Record: got %+v, want nil", e.Record)
	}
	if e.ValidRatio() != 0 {
		t.Errorf("ValidRatio: got %v, want 0", e.ValidRatio())
	}
}

func TestPut_EntriesAreImmutable(t *testing.T) {
	st := New(5 * time.Minute)
	first := st.Put(rec("s", 50, false))
	st.Put(rec("s", 95, true))

	if first.Frames != 1 || first.Record.FormScore != 50 {
		t.Errorf("earlier entry changed: %+v", first)
	}
}

func TestList_ExcludesStaleAndSorts(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute)) // stale
	st.Put(rec("old", 80, true))

	st.now = fixedClock(base) // live
	st.Put(rec("zeta", 80, true))
	st.Put(rec("alpha", 80, true))

	entries := st.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].SessionID != "alpha" || entries[1].SessionID != "zeta" {
		t.Errorf("List order: got %s, %s", entries[0].SessionID, entries[1].SessionID)
	}
}

func TestCount_IncludesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(rec("old", 80, true))

	st.now = fixedClock(base)
	st.Put(rec("new", 80, true))

	if n := st.Count(); n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	st.Put(rec("old1", 80, true))
	st.Put(rec("old2", 80, true))

	st.now = fixedClock(base)
	st.Put(rec("live", 80, true))

	if removed := st.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if st.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", st.Count())
	}
}

func TestEvict_NoOp_AllLive(t *testing.T) {
	base := time.Now()
	st := New(5 * time.Minute)

	st.now = fixedClock(base)
	st.Put(rec("s", 80, true))

	if removed := st.Evict(base); removed != 0 {
		t.Errorf("Evict on live entry: removed %d, want 0", removed)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	st := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := New(5 * time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Put(rec("s-a", 80, true))
		}()
		go func() {
			defer wg.Done()
			st.List()
		}()
	}
	wg.Wait()

	e, _ := st.Get("s-a")
	if e.Frames != 50 {
		t.Errorf("Frames after concurrent puts: got %d, want 50", e.Frames)
	}
}
