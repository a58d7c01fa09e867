// Package audio provides the signed-16 little-endian WAV encode/decode used
// for mock capture injection, request dumps, and one-shot file playback.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWav builds a canonical signed-16 PCM WAV buffer, generalized from a
// single-channel writer into arbitrary channel counts.
func EncodeWav(pcm []byte, sampleRate int, channels int) []byte {
	buf := new(bytes.Buffer)

	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// NewWavBuffer keeps the teacher's original mono-PCM signature for callers
// that only ever deal with single-channel request dumps.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	return EncodeWav(pcm, sampleRate, 1)
}

type WavFile struct {
	SampleRate int
	Channels   int
	PCM        []byte
}

// DecodeWav parses a RIFF/WAVE container down to its signed-16 PCM payload.
// Used for mock-audio-file injection and one-shot file playback; it does
// not support compressed WAV formats.
func DecodeWav(b []byte) (*WavFile, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	out := &WavFile{}
	pos := 12
	sawFmt := false
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(b) {
			break
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too small")
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format tag %d", format)
			}
			out.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bitsPerSample := binary.LittleEndian.Uint16(b[body+14 : body+16])
			if bitsPerSample != 16 {
				return nil, fmt.Errorf("unsupported bits per sample %d", bitsPerSample)
			}
			sawFmt = true
		case "data":
			out.PCM = b[body : body+size]
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt || out.PCM == nil {
		return nil, fmt.Errorf("missing fmt or data chunk")
	}
	return out, nil
}
