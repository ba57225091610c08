package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"FeedSentiment/internal/page"
)

type fakeScheduler struct {
	mu      sync.Mutex
	job     func(time.Time)
	stopped bool
}

func (f *fakeScheduler) Start(_ context.Context, job func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = job
	return nil
}

func (f *fakeScheduler) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeScheduler) Fire() {
	f.mu.Lock()
	job := f.job
	f.mu.Unlock()
	if job != nil {
		job(time.Now())
	}
}

func newDoc(t *testing.T) *page.Document {
	t.Helper()
	doc, err := page.ParseString(`<html><body><main id="feed"></main></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func expectSignal(t *testing.T, w *Watcher, want Reason) {
	t.Helper()
	select {
	case got := <-w.C():
		if got != want {
			t.Fatalf("expected %s signal, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s signal", want)
	}
}

func expectQuiet(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case got := <-w.C():
		t.Fatalf("unexpected %s signal", got)
	case <-time.After(wait):
	}
}

func TestMutationBurstCoalescesIntoOneSignal(t *testing.T) {
	t.Parallel()

	doc := newDoc(t)
	w := New(Options{SettleDelay: 30 * time.Millisecond})
	w.Watch(doc)
	defer func() { _ = w.Stop(context.Background()) }()

	for i := 0; i < 5; i++ {
		if _, err := doc.AppendHTML(doc.Find("#feed"), `<article>post</article>`); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	expectSignal(t, w, ReasonMutation)
	expectQuiet(t, w, 100*time.Millisecond)
}

func TestPeriodicTrigger(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{}
	w := New(Options{Periodic: sched})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	sched.Fire()
	expectSignal(t, w, ReasonPeriodic)

	sched.Fire()
	sched.Fire()
	expectSignal(t, w, ReasonPeriodic)
	expectQuiet(t, w, 20*time.Millisecond)

	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !sched.stopped {
		t.Fatalf("periodic scheduler was not stopped")
	}
}

func TestStopUnsubscribes(t *testing.T) {
	t.Parallel()

	doc := newDoc(t)
	w := New(Options{SettleDelay: 10 * time.Millisecond})
	w.Watch(doc)
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := doc.AppendHTML(doc.Find("#feed"), `<article>late</article>`); err != nil {
		t.Fatalf("append: %v", err)
	}
	expectQuiet(t, w, 50*time.Millisecond)
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	w := New(Options{})
	w.Trigger(ReasonPeriodic)
	expectSignal(t, w, ReasonPeriodic)
}
