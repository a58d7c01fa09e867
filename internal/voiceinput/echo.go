package voiceinput

import (
	"bytes"
	"math"
	"sync"
	"time"
)

// EchoSuppressor is an optional pre-VAD filter that recognizes the
// appliance's own speaker output bleeding back into the microphone, so it
// doesn't get misclassified as user speech. Adapted from the teacher's
// EchoSuppressor (pkg/orchestrator/echo_suppression.go); not present in
// spec.md or original_source, carried forward as a supplemented feature
// (see SPEC_FULL.md §3).
type EchoSuppressor struct {
	mu             sync.Mutex
	playedAudioBuf *bytes.Buffer
	maxBufSize     int
	echoThreshold  float64
	echoSilenceMS  int
	lastPlayedAt   time.Time
	enabled        bool
}

func NewEchoSuppressor(enabled bool) *EchoSuppressor {
	return &EchoSuppressor{
		playedAudioBuf: new(bytes.Buffer),
		maxBufSize:     176400,
		echoThreshold:  0.55,
		echoSilenceMS:  1200,
		enabled:        enabled,
	}
}

func (es *EchoSuppressor) RecordPlayedAudio(chunk []byte) {
	if !es.enabled || len(chunk) == 0 {
		return
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	es.playedAudioBuf.Write(chunk)
	es.lastPlayedAt = time.Now()

	if es.playedAudioBuf.Len() > es.maxBufSize {
		data := es.playedAudioBuf.Bytes()
		trim := data[len(data)-es.maxBufSize:]
		es.playedAudioBuf.Reset()
		es.playedAudioBuf.Write(trim)
	}
}

func (es *EchoSuppressor) IsEcho(inputChunk []byte) bool {
	if !es.enabled || len(inputChunk) == 0 {
		return false
	}
	es.mu.Lock()
	defer es.mu.Unlock()

	if time.Since(es.lastPlayedAt) > time.Duration(es.echoSilenceMS)*time.Millisecond {
		return false
	}

	playedData := es.playedAudioBuf.Bytes()
	if len(playedData) == 0 {
		return false
	}

	if es.correlation(inputChunk, playedData) > es.echoThreshold {
		return true
	}

	envCorr := maxEnvelopeCorrelation(bytesToSamples(inputChunk), bytesToSamples(playedData), 8)
	return envCorr > es.echoThreshold+0.05
}

func (es *EchoSuppressor) correlation(input, reference []byte) float64 {
	inputSamples := bytesToSamples(input)
	refSamples := bytesToSamples(reference)
	if len(inputSamples) == 0 || len(refSamples) == 0 {
		return 0
	}

	compareLen := len(inputSamples)
	if compareLen > len(refSamples) {
		compareLen = len(refSamples)
	}
	refCompare := refSamples[len(refSamples)-compareLen:]

	inputEnergy := calculateEnergy(inputSamples)
	refEnergy := calculateEnergy(refCompare)
	if inputEnergy == 0 || refEnergy == 0 {
		return 0
	}

	dot := 0.0
	for i := 0; i < len(inputSamples) && i < len(refCompare); i++ {
		dot += inputSamples[i] * refCompare[i]
	}

	norm := math.Sqrt(inputEnergy * refEnergy)
	if norm == 0 {
		return 0
	}
	c := dot / norm
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func (es *EchoSuppressor) ClearEchoBuffer() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.playedAudioBuf.Reset()
}

func (es *EchoSuppressor) SetThreshold(threshold float64) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if threshold >= 0 && threshold <= 1 {
		es.echoThreshold = threshold
	}
}

func bytesToSamples(data []byte) []float64 {
	samples := make([]float64, 0, len(data)/2)
	for i := 0; i < len(data)-1; i += 2 {
		sample := int16(data[i]) | int16(data[i+1])<<8
		samples = append(samples, float64(sample)/32768.0)
	}
	return samples
}

func calculateEnergy(samples []float64) float64 {
	e := 0.0
	for _, s := range samples {
		e += s * s
	}
	return e
}

func maxEnvelopeCorrelation(inSamples, refSamples []float64, decimation int) float64 {
	if len(inSamples) == 0 || len(refSamples) == 0 {
		return 0
	}
	envelope := func(s []float64) []float64 {
		env := make([]float64, len(s)/decimation)
		for i := range env {
			sum := 0.0
			for j := 0; j < decimation; j++ {
				sum += math.Abs(s[i*decimation+j])
			}
			env[i] = sum
		}
		return env
	}
	inEnv := envelope(inSamples)
	refEnv := envelope(refSamples)

	compareLen := len(inEnv)
	if compareLen > len(refEnv) {
		compareLen = len(refEnv)
	}
	if compareLen == 0 {
		return 0
	}

	inMean := 0.0
	for i := 0; i < compareLen; i++ {
		inMean += inEnv[i]
	}
	inMean /= float64(compareLen)

	inVar := 0.0
	for i := 0; i < compareLen; i++ {
		inEnv[i] -= inMean
		inVar += inEnv[i] * inEnv[i]
	}
	if inVar <= 0 {
		return 0
	}

	maxCorr := 0.0
	stride := compareLen / 4
	if stride < 2 {
		stride = 2
	}
	searchRange := len(refEnv) - compareLen + 1
	for pos := 0; pos < searchRange; pos += stride {
		refMean := 0.0
		for i := 0; i < compareLen; i++ {
			refMean += refEnv[pos+i]
		}
		refMean /= float64(compareLen)

		dot, refVar := 0.0, 0.0
		for i := 0; i < compareLen; i++ {
			r := refEnv[pos+i] - refMean
			dot += inEnv[i] * r
			refVar += r * r
		}
		if refVar > 0 {
			if corr := dot / math.Sqrt(inVar*refVar); corr > maxCorr {
				maxCorr = corr
			}
		}
	}
	return maxCorr
}
