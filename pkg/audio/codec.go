package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedPayload is matched by every decode failure.
var ErrMalformedPayload = errors.New("malformed audio payload")

// DecodeError reports a payload that is not valid base64.
type DecodeError struct {
	Len int
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d byte payload: %v", e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMalformedPayload) match decode failures.
func (e *DecodeError) Is(target error) bool { return target == ErrMalformedPayload }

// DecodeBase64 decodes a standard base64 payload to raw bytes.
func DecodeBase64(payload string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Len: len(payload), Err: err}
	}
	return b, nil
}

// EncodeBase64 is the inverse of DecodeBase64.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// BytesToSamples reinterprets b as little-endian signed 16-bit PCM and
// normalizes each sample to [-1, 1) by dividing by 32768. A trailing odd
// byte is ignored.
func BytesToSamples(b []byte) []float32 {
	n := len(b) / BytesPerSample
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(b[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// SamplesToBytes encodes normalized samples as little-endian signed 16-bit
// PCM. Values outside [-1, 1] are clamped.
func SamplesToBytes(samples []float32) []byte {
	b := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(toInt16(s)))
	}
	return b
}

func toInt16(s float32) int16 {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return math.MinInt16
	case s >= 0:
		return int16(s * math.MaxInt16)
	default:
		return int16(s * 32768)
	}
}
