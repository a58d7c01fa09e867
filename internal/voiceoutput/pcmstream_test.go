package voiceoutput

import "testing"

func TestPCMPusherWithholdsBelowThreshold(t *testing.T) {
	s := &sink{channels: 1, sampleRate: 8000}
	p := newPCMPusher(s, 8000, 1)

	p.push(make([]byte, 4))

	if !s.empty() {
		t.Fatalf("expected sink to stay empty below the minimum push threshold")
	}
}

func TestPCMPusherFlushesOnceThresholdReached(t *testing.T) {
	s := &sink{channels: 1, sampleRate: 8000}
	p := newPCMPusher(s, 8000, 1)

	p.push(make([]byte, minPcmChunkBytes(8000, 1)))

	if s.empty() {
		t.Fatalf("expected sink to receive data once the threshold was reached")
	}
}

func TestPCMPusherFlushPushesRemainder(t *testing.T) {
	s := &sink{channels: 2, sampleRate: 8000}
	p := newPCMPusher(s, 8000, 2)

	p.push(make([]byte, 6))
	if !s.empty() {
		t.Fatalf("expected remainder to stay pending before flush")
	}

	p.flush()
	if s.empty() {
		t.Fatalf("expected flush to push the remaining frame-aligned bytes")
	}
}

func TestPCMPusherKeepsUnalignedRemainder(t *testing.T) {
	s := &sink{channels: 2, sampleRate: 8000}
	p := newPCMPusher(s, 8000, 2)

	// One byte more than a full stereo frame; flush pushes the whole frame
	// and must not push the partial one.
	p.pending = make([]byte, 5)
	p.flush()

	if len(s.pending) != 4 {
		t.Fatalf("expected flush to push one 4-byte frame and withhold the trailing byte, got %d bytes", len(s.pending))
	}
	if len(p.pending) != 1 {
		t.Fatalf("expected 1 leftover byte, got %d", len(p.pending))
	}
}
