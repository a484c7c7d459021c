// Package sound plays the capture shutter click.
package sound

import (
	"log"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	sampleRate = 44100
	clickHz    = 1900.0
	clickLen   = 0.14 // seconds
	decayRate  = 38.0 // exponential amplitude decay per second
)

// Player owns the audio device. Playback failures disable the player rather
// than failing captures; the click is feedback, not function.
type Player struct {
	mu       sync.Mutex
	enabled  bool
	initDone bool
	samples  []float32
}

// NewPlayer returns a player. When enabled is false every call is a no-op.
func NewPlayer(enabled bool) *Player {
	return &Player{enabled: enabled, samples: synthesizeClick()}
}

// Play emits the shutter click, blocking until the buffer has been written.
// The first failure logs once and disables the player.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	if err := p.play(); err != nil {
		log.Printf("SOUND: disabling capture sound: %v", err)
		p.enabled = false
	}
}

func (p *Player) play() error {
	if !p.initDone {
		if err := portaudio.Initialize(); err != nil {
			return err
		}
		p.initDone = true
	}

	buf := make([]float32, 512)
	pos := 0
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, len(buf), &buf)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	for pos < len(p.samples) {
		n := copy(buf, p.samples[pos:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		pos += n
		if err := stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the audio device.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initDone {
		if err := portaudio.Terminate(); err != nil {
			log.Printf("SOUND: terminate failed: %v", err)
		}
		p.initDone = false
	}
}

// synthesizeClick renders an exponentially decaying sine burst, which reads
// as a camera shutter at 140ms.
func synthesizeClick() []float32 {
	n := int(clickLen * sampleRate)
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / sampleRate
		amp := 0.4 * math.Exp(-decayRate*t)
		samples[i] = float32(amp * math.Sin(2*math.Pi*clickHz*t))
	}
	return samples
}
