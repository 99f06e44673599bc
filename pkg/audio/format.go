// Package audio converts between the raw PCM payloads returned by speech
// generation and the sample buffers and containers used for playback and
// export.
package audio

import (
	"fmt"
	"time"
)

// Speech output format. Synthesized speech and live responses are 16-bit
// mono PCM at 24kHz; microphone input is sent at 16kHz.
const (
	SpeechSampleRate = 24000
	InputSampleRate  = 16000
	Channels         = 1
	BitDepth         = 16
	BytesPerSample   = BitDepth / 8
)

// Format describes interleaved PCM audio.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// SpeechFormat returns the format of synthesized speech.
func SpeechFormat() Format {
	return Format{
		SampleRate:    SpeechSampleRate,
		Channels:      Channels,
		BitsPerSample: BitDepth,
	}
}

// BlockAlign returns the number of bytes in one frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Validate checks that the format can be played or written.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("invalid bits per sample %d", f.BitsPerSample)
	}
	return nil
}

// Duration returns the playback length of n mono samples at rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// Silence returns d worth of silent samples at rate.
func Silence(d time.Duration, rate int) []float32 {
	n := int(d * time.Duration(rate) / time.Second)
	if n < 0 {
		n = 0
	}
	return make([]float32, n)
}
