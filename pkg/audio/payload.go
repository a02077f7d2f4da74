package audio

import "encoding/base64"

// Media-stream frames carry 20ms of 8kHz μ-law, 160 bytes per frame.
const FrameSize = 160

// ChunkBytes splits audio data into chunks of specified size
func ChunkBytes(data []byte, chunkSize int) [][]byte {
	if chunkSize <= 0 {
		chunkSize = FrameSize
	}

	var chunks [][]byte
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}

	return chunks
}

// EncodePayload encodes an audio chunk to base64 for transport JSON
func EncodePayload(chunk []byte) string {
	return base64.StdEncoding.EncodeToString(chunk)
}

// DecodePayload decodes a base64 audio payload from transport JSON
func DecodePayload(payload string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(payload)
}
