package voiceoutput

import (
	"errors"
	"io"
	"sync"

	"github.com/hajimehoshi/go-mp3"
)

// streamingReader is a pull-oriented io.ReadSeeker fed by a push-oriented
// channel of byte chunks. Read blocks until enough bytes have arrived or
// the stream has ended. Seeking from the end is unsupported until the
// total length is known (i.e. until End has been observed) — the one trick
// needed to compose a pull-oriented decoder with a push-oriented network
// source, per spec.md §9.
type streamingReader struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	pos    int
	ended  bool
	closed bool
}

func newStreamingReader() *streamingReader {
	r := &streamingReader{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *streamingReader) pushData(chunk []byte) {
	r.mu.Lock()
	r.buf = append(r.buf, chunk...)
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *streamingReader) pushEnd() {
	r.mu.Lock()
	r.ended = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *streamingReader) close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *streamingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.pos >= len(r.buf) && !r.ended && !r.closed {
		r.cond.Wait()
	}
	if r.closed {
		return 0, io.EOF
	}
	if r.pos >= len(r.buf) {
		if r.ended {
			return 0, io.EOF
		}
		return 0, nil
	}

	n := copy(p, r.buf[r.pos:])
	r.pos += n
	return n, nil
}

func (r *streamingReader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(r.pos)
	case io.SeekEnd:
		if !r.ended {
			return 0, errors.New("seek from end unsupported until stream end is known")
		}
		base = int64(len(r.buf))
	default:
		return 0, errors.New("invalid whence")
	}

	target := base + offset
	if target < 0 || target > int64(len(r.buf)) {
		return 0, errors.New("seek out of buffered range")
	}
	r.pos = int(target)
	return target, nil
}

// runMP3Stream decodes from reader and pushes PCM frames (stereo, 16-bit)
// into the sink until stop is signaled or the decoder is exhausted.
func runMP3Stream(reader *streamingReader, s *sink, stop <-chan struct{}) {
	decoder, err := mp3.NewDecoder(reader)
	if err != nil {
		return
	}

	s.push(silencePcmBytes(startSilenceMS, decoder.SampleRate(), 2))

	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := decoder.Read(buf)
		if n > 0 {
			s.push(monoThenStereo(buf[:n], 2))
		}
		if err != nil {
			return
		}
	}
}

// monoThenStereo duplicates a mono (or downmixes a multi-channel) 16-bit PCM
// buffer into interleaved stereo, matching original_source's
// mono_then_stereo helper. go-mp3 always decodes to interleaved stereo, so
// runMP3Stream, its only caller, passes 2 and gets the buffer back unchanged.
func monoThenStereo(pcm []byte, channels int) []byte {
	if channels == 2 {
		return pcm
	}
	if channels > 2 {
		frameBytes := channels * 2
		mono := make([]byte, 0, len(pcm)/channels)
		for f := 0; f+frameBytes <= len(pcm); f += frameBytes {
			sum := 0
			for c := 0; c < channels; c++ {
				sum += int(int16(pcm[f+c*2]) | int16(pcm[f+c*2+1])<<8)
			}
			v := int16(sum / channels)
			mono = append(mono, byte(v), byte(v>>8))
		}
		pcm = mono
	}
	out := make([]byte, len(pcm)*2)
	for i := 0; i+1 < len(pcm); i += 2 {
		out[i*2] = pcm[i]
		out[i*2+1] = pcm[i+1]
		out[i*2+2] = pcm[i]
		out[i*2+3] = pcm[i+1]
	}
	return out
}
