package ambience

import (
	"encoding/binary"
	"math"
)

// Drone parameters.
const (
	DroneRoot   = 55.0  // A1
	DroneCutoff = 100.0 // Low-pass corner
	DroneQ      = 2.0
	DroneGain   = 0.15
)

type waveform int

const (
	sawtooth waveform = iota
	sine
)

type oscillator struct {
	wave  waveform
	phase float64
	inc   float64
}

func newOscillator(wave waveform, freq, cents float64, rate int) *oscillator {
	f := freq * math.Pow(2, cents/1200)
	return &oscillator{wave: wave, inc: f / float64(rate)}
}

func (o *oscillator) next() float64 {
	var v float64
	switch o.wave {
	case sawtooth:
		v = 2*o.phase - 1
	default:
		v = math.Sin(2 * math.Pi * o.phase)
	}
	o.phase += o.inc
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
	return v
}

// lowpass is a second-order resonant low-pass filter.
type lowpass struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func newLowpass(cutoff, q float64, rate int) *lowpass {
	w := 2 * math.Pi * cutoff / float64(rate)
	alpha := math.Sin(w) / (2 * q)
	cos := math.Cos(w)
	a0 := 1 + alpha
	return &lowpass{
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *lowpass) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

type layer struct {
	osc    *oscillator
	filter *lowpass
}

// Drone is an endless stream of 16-bit mono PCM: two 55 Hz saws, one
// detuned by +4 cents, and a 110 Hz sine at -2 cents, each through a
// resonant 100 Hz low-pass and mixed at DroneGain.
type Drone struct {
	layers []layer
	gain   float64
}

// NewDrone creates a drone at the given sample rate.
func NewDrone(rate int) *Drone {
	mk := func(w waveform, freq, cents float64) layer {
		return layer{osc: newOscillator(w, freq, cents, rate), filter: newLowpass(DroneCutoff, DroneQ, rate)}
	}
	return &Drone{
		layers: []layer{
			mk(sawtooth, DroneRoot, 0),
			mk(sawtooth, DroneRoot, 4),
			mk(sine, 2*DroneRoot, -2),
		},
		gain: DroneGain,
	}
}

// Sample returns the next sample.
func (d *Drone) Sample() float64 {
	var sum float64
	for _, l := range d.layers {
		sum += l.filter.process(l.osc.next())
	}
	return sum * d.gain
}

// Read fills p with whole samples. It never returns an error.
func (d *Drone) Read(p []byte) (int, error) {
	n := len(p) / 2 * 2
	for i := 0; i < n; i += 2 {
		v := math.Max(-1, math.Min(1, d.Sample()))
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(v*math.MaxInt16)))
	}
	return n, nil
}
