package voiceoutput

import "testing"

func TestBeepPCMLengthMatchesDuration(t *testing.T) {
	pcm := beepPCM(44100, 1)
	wantFrames := 44100 * 250 / 1000
	if len(pcm) != wantFrames*2 {
		t.Fatalf("expected %d bytes for a mono 250ms beep, got %d", wantFrames*2, len(pcm))
	}
}

func TestBeepPCMDuplicatesAcrossChannels(t *testing.T) {
	mono := beepPCM(8000, 1)
	stereo := beepPCM(8000, 2)
	if len(stereo) != len(mono)*2 {
		t.Fatalf("expected stereo beep to be twice the length of mono, got mono=%d stereo=%d", len(mono), len(stereo))
	}
}

func TestIsMp3DetectsID3Header(t *testing.T) {
	data := []byte{'I', 'D', '3', 0x03, 0x00}
	if !isMp3("clip.bin", data) {
		t.Fatalf("expected ID3-prefixed data to be detected as mp3")
	}
}

func TestIsMp3DetectsExtension(t *testing.T) {
	if !isMp3("clip.mp3", []byte{0, 0, 0}) {
		t.Fatalf("expected .mp3 extension to be detected as mp3")
	}
}

func TestIsMp3RejectsWav(t *testing.T) {
	if isMp3("clip.wav", []byte{'R', 'I', 'F', 'F'}) {
		t.Fatalf("expected a wav file to not be detected as mp3")
	}
}
