package audio

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestDecodeBase64RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 16, 1000} {
		want := make([]byte, n)
		rng.Read(want)

		got, err := DecodeBase64(EncodeBase64(want))
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}

func TestDecodeBase64Malformed(t *testing.T) {
	_, err := DecodeBase64("not*base64!")
	if err == nil {
		t.Fatal("Expected error for malformed payload")
	}

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DecodeError, got %T", err)
	}
	if !errors.Is(err, ErrMalformedPayload) {
		t.Error("Expected decode error to match ErrMalformedPayload")
	}
}

func TestBytesToSamples(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []float32
	}{
		{"empty", nil, []float32{}},
		{"zero", []byte{0x00, 0x00}, []float32{0}},
		{"min", []byte{0x00, 0x80}, []float32{-1}},
		{"max", []byte{0xff, 0x7f}, []float32{32767.0 / 32768.0}},
		{"half", []byte{0x00, 0x40}, []float32{0.5}},
		{"odd trailing byte", []byte{0x00, 0x40, 0x12}, []float32{0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BytesToSamples(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSamplesToBytesClamps(t *testing.T) {
	b := SamplesToBytes([]float32{2, -2, 0})
	got := BytesToSamples(b)
	if got[0] != 32767.0/32768.0 {
		t.Errorf("positive clamp = %v", got[0])
	}
	if got[1] != -1 {
		t.Errorf("negative clamp = %v", got[1])
	}
	if got[2] != 0 {
		t.Errorf("zero = %v", got[2])
	}
}

func TestDurationAndSilence(t *testing.T) {
	if d := Duration(SpeechSampleRate, SpeechSampleRate); d != time.Second {
		t.Errorf("Duration = %v, want 1s", d)
	}
	if d := Duration(100, 0); d != 0 {
		t.Errorf("Duration with zero rate = %v, want 0", d)
	}
	if n := len(Silence(500*time.Millisecond, 16000)); n != 8000 {
		t.Errorf("Silence length = %d, want 8000", n)
	}
}
