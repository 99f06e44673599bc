package playback

import (
	"bytes"
	"testing"
)

func TestMockOutput(t *testing.T) {
	out := NewMockOutput(SampleRate)
	defer out.Close()

	var o Output = out
	if o.SampleRate() != SampleRate {
		t.Errorf("Expected sample rate %d, got %d", SampleRate, o.SampleRate())
	}
	if o.ChannelCount() != Channels {
		t.Errorf("Expected %d channels, got %d", Channels, o.ChannelCount())
	}

	data := []byte{0x00, 0x01, 0x02, 0x03}
	v, err := o.NewPlayer(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to create player: %v", err)
	}

	v.Play()
	if !v.IsPlaying() {
		t.Error("Voice should be playing after Play()")
	}
	v.Pause()
	if v.IsPlaying() {
		t.Error("Voice should not be playing after Pause()")
	}
	v.SetVolume(0.5)

	mv := out.Voices()[0]
	if mv.Volume() != 0.5 {
		t.Errorf("Expected volume 0.5, got %f", mv.Volume())
	}
	if !bytes.Equal(mv.Data(), data) {
		t.Errorf("Expected data %v, got %v", data, mv.Data())
	}
	if out.PlayersCreated != 1 {
		t.Errorf("Expected 1 player created, got %d", out.PlayersCreated)
	}
}

func TestOutputFactory(t *testing.T) {
	tests := []struct {
		name string
		kind OutputType
		env  string
	}{
		{name: "Mock requested", kind: OutputMock},
		{name: "Auto in CI", kind: OutputAuto, env: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("CI", tt.env)
			}
			out, err := NewOutput(tt.kind, SampleRate)
			if err != nil {
				t.Fatalf("NewOutput failed: %v", err)
			}
			defer out.Close()
			if _, ok := out.(*MockOutput); !ok {
				t.Errorf("Expected *MockOutput, got %T", out)
			}
		})
	}
}

func TestIsCI(t *testing.T) {
	for _, v := range []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE", "PADTOUR_MOCK_AUDIO"} {
		t.Setenv(v, "")
	}
	if IsCI() {
		t.Error("Expected IsCI false with no CI variables")
	}

	t.Setenv("GITHUB_ACTIONS", "false")
	if IsCI() {
		t.Error("Expected IsCI false when variable is \"false\"")
	}

	t.Setenv("PADTOUR_MOCK_AUDIO", "true")
	if !IsCI() {
		t.Error("Expected IsCI true with PADTOUR_MOCK_AUDIO")
	}
}

func TestParseOutputType(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputType
		wantErr bool
	}{
		{"", OutputAuto, false},
		{"auto", OutputAuto, false},
		{"device", OutputDevice, false},
		{"mock", OutputMock, false},
		{"speakers", OutputAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseOutputType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputType(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.String() != tt.in && tt.in != "" {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}
