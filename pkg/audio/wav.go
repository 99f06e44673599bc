package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header.
const WAVHeaderSize = 44

var (
	ErrNotWAV          = errors.New("not a RIFF/WAVE stream")
	ErrUnsupportedWAV  = errors.New("unsupported WAV encoding")
	ErrMissingWAVChunk = errors.New("missing WAV chunk")
)

// WrapPCMAsWAV prepends a canonical 44-byte WAV header to pcm.
func WrapPCMAsWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	f := Format{SampleRate: sampleRate, Channels: channels, BitsPerSample: bitsPerSample}

	out := make([]byte, WAVHeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], 1) // PCM
	le.PutUint16(out[22:24], uint16(channels))
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(f.ByteRate()))
	le.PutUint16(out[32:34], uint16(f.BlockAlign()))
	le.PutUint16(out[34:36], uint16(bitsPerSample))

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)

	return out
}

// ParseWAV reads an integer PCM WAV stream and returns its format and the
// contents of its data chunk. Unknown chunks are skipped.
func ParseWAV(b []byte) (Format, []byte, error) {
	var f Format
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return f, nil, ErrNotWAV
	}

	le := binary.LittleEndian
	var haveFmt bool
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(le.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			// Some writers leave the data size unset while streaming.
			if id == "data" && haveFmt {
				return f, b[body:], nil
			}
			return f, nil, fmt.Errorf("%w: chunk %q overruns stream", ErrNotWAV, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			if tag := le.Uint16(b[body:]); tag != 1 {
				return f, nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, tag)
			}
			f.Channels = int(le.Uint16(b[body+2:]))
			f.SampleRate = int(le.Uint32(b[body+4:]))
			f.BitsPerSample = int(le.Uint16(b[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return f, nil, fmt.Errorf("%w: data before fmt", ErrMissingWAVChunk)
			}
			return f, b[body : body+size], nil
		}

		// Chunks are padded to an even size.
		pos = body + size + size%2
	}

	if !haveFmt {
		return f, nil, fmt.Errorf("%w: fmt", ErrMissingWAVChunk)
	}
	return f, nil, fmt.Errorf("%w: data", ErrMissingWAVChunk)
}
