package voiceoutput

import (
	"io"
	"testing"
	"time"
)

func TestStreamingReaderBlocksUntilData(t *testing.T) {
	r := newStreamingReader()
	done := make(chan struct{})
	var n int
	var err error

	buf := make([]byte, 4)
	go func() {
		n, err = r.Read(buf)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Read returned before any data was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	r.pushData([]byte{1, 2, 3, 4})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Read did not unblock after pushData")
	}

	if err != nil || n != 4 {
		t.Fatalf("expected 4 bytes with no error, got n=%d err=%v", n, err)
	}
}

func TestStreamingReaderEOFOnEnd(t *testing.T) {
	r := newStreamingReader()
	r.pushData([]byte{1, 2})
	r.pushEnd()

	buf := make([]byte, 2)
	n, err := r.Read(buf)
	if err != nil || n != 2 {
		t.Fatalf("expected to read buffered bytes first, got n=%d err=%v", n, err)
	}

	_, err = r.Read(buf)
	if err != io.EOF {
		t.Fatalf("expected io.EOF after stream end, got %v", err)
	}
}

func TestStreamingReaderEOFOnClose(t *testing.T) {
	r := newStreamingReader()
	r.close()

	_, err := r.Read(make([]byte, 1))
	if err != io.EOF {
		t.Fatalf("expected io.EOF after close, got %v", err)
	}
}

func TestStreamingReaderSeekFromEndRequiresEnd(t *testing.T) {
	r := newStreamingReader()
	r.pushData([]byte{1, 2, 3})

	if _, err := r.Seek(0, io.SeekEnd); err == nil {
		t.Fatalf("expected seek from end to fail before the stream has ended")
	}

	r.pushEnd()
	pos, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		t.Fatalf("unexpected error seeking from end: %v", err)
	}
	if pos != 3 {
		t.Fatalf("expected end position 3, got %d", pos)
	}
}

func TestMonoThenStereoPassesThroughStereo(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	out := monoThenStereo(in, 2)
	if len(out) != len(in) {
		t.Fatalf("expected stereo input to pass through unchanged, got len %d", len(out))
	}
}

func TestMonoThenStereoDuplicatesMono(t *testing.T) {
	in := []byte{1, 2}
	out := monoThenStereo(in, 1)
	want := []byte{1, 2, 1, 2}
	if len(out) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("byte %d: want %d got %d", i, want[i], out[i])
		}
	}
}
