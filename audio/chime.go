package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"markestedt/keyblocker/keyboard"
)

// Tone is a single sine tone; a zero frequency is silence
type Tone struct {
	Freq     float64
	Duration time.Duration
}

var (
	blockTones   = []Tone{{660, 70 * time.Millisecond}, {880, 90 * time.Millisecond}}
	unblockTones = []Tone{{880, 70 * time.Millisecond}, {440, 110 * time.Millisecond}}
	recordTones  = []Tone{{990, 50 * time.Millisecond}, {0, 40 * time.Millisecond}, {990, 50 * time.Millisecond}}
)

// device is the part of *malgo.Device the chime drives
type device interface {
	Stop() error
	Uninit()
}

// Chime plays short confirmation tones. It implements keyboard.Notifier so
// a blocked keyboard still gets audible feedback.
type Chime struct {
	malgoCtx   *malgo.AllocatedContext
	device     device
	sampleRate uint32
	volume     float64

	mu      sync.Mutex
	pending []byte
}

// NewChime creates a chime with an open playback device
func NewChime(volume float64) (*Chime, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	c := &Chime{
		malgoCtx:   ctx,
		sampleRate: 44100,
		volume:     volume,
	}

	if err := c.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialize audio device: %w", err)
	}

	return c, nil
}

// initDevice starts a playback device that drains the pending buffer
func (c *Chime) initDevice() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = c.sampleRate
	deviceConfig.Alsa.NoMMap = 1

	onData := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		c.fill(pOutputSample)
	}

	dev, err := malgo.InitDevice(c.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	c.mu.Lock()
	c.device = dev
	c.mu.Unlock()
	return nil
}

// fill copies queued samples into out and pads it with silence
func (c *Chime) fill(out []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := copy(out, c.pending)
	c.pending = c.pending[n:]
	clear(out[n:])
}

// Play queues tones behind anything already playing
func (c *Chime) Play(tones ...Tone) {
	samples := Render(c.sampleRate, c.volume, tones...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, samples...)
}

func (c *Chime) OnStateChanged(change keyboard.StateChange) {
	if change.Blocking {
		c.Play(blockTones...)
		return
	}
	c.Play(unblockTones...)
}

func (c *Chime) OnShortcutRecorded(keyboard.Shortcut) {
	c.Play(recordTones...)
}

// Close releases resources. Stop waits for a running data callback, so it
// is called without c.mu held.
func (c *Chime) Close() error {
	c.mu.Lock()
	dev, ctx := c.device, c.malgoCtx
	c.device, c.malgoCtx = nil, nil
	c.pending = nil
	c.mu.Unlock()

	var err error
	if dev != nil {
		err = dev.Stop()
		dev.Uninit()
	}

	if ctx != nil {
		_ = ctx.Uninit()
		ctx.Free()
	}

	return err
}

// fade is the attack/release ramp applied to each tone to avoid clicks
const fade = 5 * time.Millisecond

// Render generates 16-bit little-endian mono PCM for the tones
func Render(sampleRate uint32, volume float64, tones ...Tone) []byte {
	volume = math.Max(0, math.Min(1, volume))

	var total int
	for _, t := range tones {
		total += samplesFor(sampleRate, t.Duration)
	}

	buf := make([]byte, 0, total*2)
	rampLen := samplesFor(sampleRate, fade)

	for _, t := range tones {
		n := samplesFor(sampleRate, t.Duration)
		for i := 0; i < n; i++ {
			var v float64
			if t.Freq > 0 {
				v = math.Sin(2 * math.Pi * t.Freq * float64(i) / float64(sampleRate))
				if rampLen > 0 {
					if i < rampLen {
						v *= float64(i) / float64(rampLen)
					} else if n-1-i < rampLen {
						v *= float64(n-1-i) / float64(rampLen)
					}
				}
			}
			sample := int16(v * volume * math.MaxInt16)
			buf = binary.LittleEndian.AppendUint16(buf, uint16(sample))
		}
	}

	return buf
}

func samplesFor(sampleRate uint32, d time.Duration) int {
	return int(int64(sampleRate) * d.Nanoseconds() / int64(time.Second))
}
