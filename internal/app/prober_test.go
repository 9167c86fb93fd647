package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

type fakeTarget struct {
	err   error
	calls int
}

func (f *fakeTarget) Probe(context.Context) error {
	f.calls++
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProberStartsUnavailable(t *testing.T) {
	p := NewProber(&fakeTarget{}, &fakeTarget{}, "", false, discardLogger())

	caps := p.Snapshot()
	if caps.TrackerAvailable || caps.WikiAvailable {
		t.Fatalf("backends must read unavailable before the first probe: %+v", caps)
	}
}

func TestProbeAllUpdatesSnapshot(t *testing.T) {
	trackerTarget := &fakeTarget{}
	wikiTarget := &fakeTarget{err: fmt.Errorf("connection refused")}
	p := NewProber(trackerTarget, wikiTarget, "", false, discardLogger())

	p.ProbeAll(context.Background())

	caps := p.Snapshot()
	if !caps.TrackerAvailable {
		t.Fatalf("tracker must be available after a passing probe")
	}
	if caps.WikiAvailable {
		t.Fatalf("wiki must be unavailable after a failing probe")
	}
	if trackerTarget.calls != 1 || wikiTarget.calls != 1 {
		t.Fatalf("each backend must be probed once, got %d and %d", trackerTarget.calls, wikiTarget.calls)
	}
}

func TestProbeAllRecovers(t *testing.T) {
	trackerTarget := &fakeTarget{err: fmt.Errorf("boom")}
	p := NewProber(trackerTarget, &fakeTarget{}, "", false, discardLogger())

	p.ProbeAll(context.Background())
	if p.Snapshot().TrackerAvailable {
		t.Fatalf("tracker must be unavailable while probes fail")
	}

	trackerTarget.err = nil
	p.ProbeAll(context.Background())
	if !p.Snapshot().TrackerAvailable {
		t.Fatalf("tracker must recover once probes pass")
	}
}

func TestNilTargetIsUnavailable(t *testing.T) {
	p := NewProber(nil, &fakeTarget{}, "", false, discardLogger())

	p.ProbeAll(context.Background())
	caps := p.Snapshot()
	if caps.TrackerAvailable {
		t.Fatalf("nil target must read unavailable")
	}
	if !caps.WikiAvailable {
		t.Fatalf("wiki must be available")
	}
}
