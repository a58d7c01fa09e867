package voiceinput

// Resampler performs linear-interpolation sample-rate conversion with the
// fractional position carried across calls, so a stream of irregular input
// chunks resamples exactly as if it had arrived as one continuous buffer.
// Grounded on original_source's LinearResampler (src/tasks/voice_input.rs).
type Resampler struct {
	inRate, outRate int
	pos             float64 // fractional read position into the pending carry+input buffer
	carry           []float32
}

func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{inRate: inRate, outRate: outRate}
}

func (r *Resampler) Resample(in []float32) []float32 {
	if r.inRate == r.outRate {
		return in
	}

	buf := append(r.carry, in...)
	ratio := float64(r.inRate) / float64(r.outRate)

	var out []float32
	pos := r.pos
	for {
		i0 := int(pos)
		if i0+1 >= len(buf) {
			break
		}
		frac := pos - float64(i0)
		sample := buf[i0]*float32(1-frac) + buf[i0+1]*float32(frac)
		out = append(out, sample)
		pos += ratio
	}

	consumed := int(pos)
	if consumed > len(buf) {
		consumed = len(buf)
	}
	r.carry = append([]float32(nil), buf[consumed:]...)
	r.pos = pos - float64(consumed)

	return out
}

// ConvertChannels maps interleaved samples from inCh to outCh channels:
// identity when equal, mean-downmix to mono, or duplicate-to-upmix.
func ConvertChannels(in []float32, inCh, outCh int) []float32 {
	if inCh == outCh || inCh == 0 || outCh == 0 {
		return in
	}

	frames := len(in) / inCh
	out := make([]float32, 0, frames*outCh)

	if outCh == 1 {
		for f := 0; f < frames; f++ {
			var sum float32
			for c := 0; c < inCh; c++ {
				sum += in[f*inCh+c]
			}
			out = append(out, sum/float32(inCh))
		}
		return out
	}

	if inCh == 1 {
		for f := 0; f < frames; f++ {
			for c := 0; c < outCh; c++ {
				out = append(out, in[f])
			}
		}
		return out
	}

	// Arbitrary in->out with differing multi-channel counts: downmix to
	// mono first, then duplicate.
	mono := ConvertChannels(in, inCh, 1)
	return ConvertChannels(mono, 1, outCh)
}

// F32ToI16 converts float32 samples in [-1,1] to little-endian signed-16 PCM.
func F32ToI16(in []float32) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
