package audio

import (
	"bytes"
	"testing"
)

func TestChunkBytes(t *testing.T) {
	tests := []struct {
		name      string
		dataLen   int
		chunkSize int
		want      []int // chunk lengths
	}{
		{"exact frames", 320, FrameSize, []int{160, 160}},
		{"trailing partial frame", 400, FrameSize, []int{160, 160, 80}},
		{"smaller than one frame", 80, FrameSize, []int{80}},
		{"zero size falls back to frame size", 160, 0, []int{160}},
		{"empty input", 0, FrameSize, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkBytes(make([]byte, tt.dataLen), tt.chunkSize)
			if len(chunks) != len(tt.want) {
				t.Fatalf("chunks = %d, want %d", len(chunks), len(tt.want))
			}
			for i, chunk := range chunks {
				if len(chunk) != tt.want[i] {
					t.Errorf("chunk[%d] len = %d, want %d", i, len(chunk), tt.want[i])
				}
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	frame := make([]byte, FrameSize)
	for i := range frame {
		frame[i] = byte(i)
	}

	decoded, err := DecodePayload(EncodePayload(frame))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if !bytes.Equal(decoded, frame) {
		t.Error("payload round trip altered the frame")
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	if _, err := DecodePayload("not base64!!!"); err == nil {
		t.Error("garbage payload decoded without error")
	}
}

func TestDecodeMuLawToPCM16(t *testing.T) {
	if got := DecodeMuLawToPCM16(nil); got != nil {
		t.Errorf("nil input produced %v", got)
	}

	// one input byte yields one 16-bit sample
	out := DecodeMuLawToPCM16(make([]byte, FrameSize))
	if len(out) != FrameSize*2 {
		t.Errorf("output len = %d, want %d", len(out), FrameSize*2)
	}
}

func TestPCM16Energy(t *testing.T) {
	if got := PCM16Energy(nil); got != 0 {
		t.Errorf("energy of empty input = %f", got)
	}

	// silence (all zero samples) has zero energy
	if got := PCM16Energy(make([]byte, 320)); got != 0 {
		t.Errorf("energy of silence = %f", got)
	}

	// constant amplitude 100: two samples, little-endian
	pcm := []byte{100, 0, 100, 0}
	if got := PCM16Energy(pcm); got != 100 {
		t.Errorf("energy = %f, want 100", got)
	}

	// negative amplitude counts as magnitude: -100 = 0x9C 0xFF
	pcm = []byte{0x9C, 0xFF, 0x9C, 0xFF}
	if got := PCM16Energy(pcm); got != 100 {
		t.Errorf("energy of negative samples = %f, want 100", got)
	}
}
