package voiceinput

import (
	"encoding/binary"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// frameSamples is the neural classifier's fixed input width: 480 samples
// (30ms) at 16kHz, matching the Silero-style VAD ONNX graph.
const frameSamples = 480

// NeuralClassifier wraps a Silero-style streaming VAD ONNX graph: a
// recurrent state tensor carried across calls plus a scalar sample-rate
// tensor, reset whenever the tracker begins a new listen window.
//
// Grounded on the dependency combination in the nupi-ai plugin-vad-local-
// silero manifest (onnxruntime_go for a local Silero VAD plugin); no source
// from that manifest was available, so the session wiring below follows
// onnxruntime_go's published session/tensor API directly.
type NeuralClassifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	state   *ort.Tensor[float32]
	sr      *ort.Tensor[int64]
	output  *ort.Tensor[float32]
	stateOut *ort.Tensor[float32]

	threshold  float64
	sampleRate int64
}

func NewNeuralClassifier(modelPath string, sampleRate int, threshold float64) (*NeuralClassifier, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, frameSamples))
	if err != nil {
		return nil, fmt.Errorf("alloc input tensor: %w", err)
	}
	state, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return nil, fmt.Errorf("alloc state tensor: %w", err)
	}
	sr, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		return nil, fmt.Errorf("alloc sr tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return nil, fmt.Errorf("alloc output tensor: %w", err)
	}
	stateOut, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return nil, fmt.Errorf("alloc state-out tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.ArbitraryTensor{input, state, sr},
		[]ort.ArbitraryTensor{output, stateOut},
		nil)
	if err != nil {
		return nil, fmt.Errorf("load vad model %s: %w", modelPath, err)
	}

	return &NeuralClassifier{
		session:    session,
		input:      input,
		state:      state,
		sr:         sr,
		output:     output,
		stateOut:   stateOut,
		threshold:  threshold,
		sampleRate: int64(sampleRate),
	}, nil
}

// Classify partitions chunk into 480-sample frames and runs inference on
// each; it returns speech as soon as one frame's P(speech) >= threshold.
func (n *NeuralClassifier) Classify(chunk []byte) (bool, error) {
	samples := bytesToFloat32(chunk)
	for start := 0; start+frameSamples <= len(samples); start += frameSamples {
		frame := samples[start : start+frameSamples]
		copy(n.input.GetData(), frame)

		if err := n.session.Run(); err != nil {
			return false, fmt.Errorf("vad inference: %w", err)
		}

		copy(n.state.GetData(), n.stateOut.GetData())

		if float64(n.output.GetData()[0]) >= n.threshold {
			return true, nil
		}
	}
	return false, nil
}

func (n *NeuralClassifier) Reset() {
	data := n.state.GetData()
	for i := range data {
		data[i] = 0
	}
}

func (n *NeuralClassifier) Name() string { return "neural" }

func (n *NeuralClassifier) Close() error {
	return n.session.Destroy()
}

func bytesToFloat32(chunk []byte) []float32 {
	out := make([]float32, len(chunk)/2)
	for i := range out {
		sample := int16(binary.LittleEndian.Uint16(chunk[i*2 : i*2+2]))
		out[i] = float32(sample) / 32768.0
	}
	return out
}
