package core

import (
	"strings"
	"testing"
)

func TestTimingRingOrder(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	for i := uint32(0); i < TimingRingSize+3; i++ {
		RecordTiming(EvtDACTrigger, 1, i, i*10, 0)
	}
	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("Got %d events, want %d", len(events), TimingRingSize)
	}
	if events[0].Clock != 3 || events[len(events)-1].Clock != TimingRingSize+2 {
		t.Errorf("Ring spans clock %d..%d", events[0].Clock, events[len(events)-1].Clock)
	}
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordTiming(EvtDACStream, 2, 500, 64, 1)
	RecordTiming(99, 0, 600, 0, 0)
	DumpTimingRing()

	if len(lines) != 4 {
		t.Fatalf("Got %d lines: %q", len(lines), lines)
	}
	if want := "[TIMING] DAC_STREAM oid=2 clock=500 v1=64 v2=1"; lines[1] != want {
		t.Errorf("Line = %q, want %q", lines[1], want)
	}
	if !strings.HasPrefix(lines[2], "[TIMING] EVT99 ") {
		t.Errorf("Unknown event printed as %q", lines[2])
	}
}

func TestDebugPrintlnDisabled(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("quiet")
	SetDebugEnabled(true)
	DebugPrintln("loud")
	SetDebugEnabled(false)

	if len(lines) != 1 || lines[0] != "loud" {
		t.Errorf("Got %q", lines)
	}
}
