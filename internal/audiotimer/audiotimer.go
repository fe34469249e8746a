// Package audiotimer implements fluxemu's CHIP-8-style audio timer: a
// register that counts down at a fixed 60 Hz regardless of host speed,
// driving a 50% duty-cycle square wave tone into a ring buffer while
// nonzero. It is the exemplar on-demand audio component: the scheduler
// never calls it directly, as nothing in a machine's cycle-accurate core
// needs its samples synchronously; whatever mediates the audio backend
// pulls from it via the capability-interface pattern component.AudioProvider
// defines.
package audiotimer

import (
	"fmt"
	"io"
	"math"

	"fluxemu/internal/component"
	"fluxemu/internal/ringbuffer"
	"fluxemu/internal/timeval"
)

const (
	// InternalRate is the rate samples are produced and the countdown
	// register is paced against.
	InternalRate float32 = 8000
	// CountdownRate is the rate the register decrements at, independent of
	// InternalRate, matching every CHIP-8 interpreter's documented timer.
	CountdownRate float32 = 60
	// ToneHz is the frequency of the square wave emitted while the register
	// is nonzero.
	ToneHz float32 = 440
	// bufferSeconds sizes the ring buffer generously enough that a slow
	// audio backend falling behind by up to this long never blocks the timer.
	bufferSeconds = 10
)

// Timer is a CHIP-8 sound/delay-style countdown timer with tone output.
type Timer struct {
	register uint8

	phase              float64
	phaseStep          float64
	samplesPerDecrement float64
	decrementAccum      float64

	buffer *ringbuffer.RingBuffer[component.AudioFrame]
}

// New constructs a Timer with an empty register and a silent buffer.
func New() *Timer {
	capacity := int(InternalRate * bufferSeconds)
	return &Timer{
		phaseStep:           float64(ToneHz) / float64(InternalRate),
		samplesPerDecrement: float64(InternalRate) / float64(CountdownRate),
		buffer:              ringbuffer.New[component.AudioFrame](capacity),
	}
}

// SetValue loads the countdown register, e.g. from the machine's ST/DT
// register write. The tone starts or stops on the next internal tick.
func (t *Timer) SetValue(v uint8) {
	t.register = v
}

// Value reports the current countdown register.
func (t *Timer) Value() uint8 {
	return t.register
}

// Synchronize implements component.Component. It self-paces at
// InternalRate, producing one sample and decrementing the register on the
// 60 Hz boundary regardless of how fast the host calls Synchronize.
func (t *Timer) Synchronize(ctx component.SyncContext) {
	period := timeval.NewFrequency(InternalRate).Period()
	it := ctx.Allocate(period, -1)
	for {
		if _, ok := it.Next(); !ok {
			return
		}
		t.tick()
	}
}

func (t *Timer) tick() {
	var sample float32
	if t.register > 0 {
		if t.phase < 0.5 {
			sample = 1
		} else {
			sample = -1
		}
	}
	t.buffer.Push(component.AudioFrame{Value: sample})

	t.phase += t.phaseStep
	if t.phase >= 1 {
		t.phase -= math.Floor(t.phase)
	}

	t.decrementAccum++
	if t.decrementAccum >= t.samplesPerDecrement {
		t.decrementAccum -= t.samplesPerDecrement
		if t.register > 0 {
			t.register--
		}
	}
}

// NeedsWork reports whether at least one internal sample period has elapsed.
func (t *Timer) NeedsWork(delta timeval.Period) bool {
	period := timeval.NewFrequency(InternalRate).Period()
	return delta.DivFloor(period) > 0
}

// GetAudioChannel implements component.AudioProvider. path is unused: a
// Timer only ever exposes its one channel.
func (t *Timer) GetAudioChannel(path string) (component.AudioChannel, bool) {
	return component.AudioChannel{Source: t.buffer, SampleRate: InternalRate}, true
}

const snapshotVersion uint16 = 1

// SnapshotVersion reports this Timer's save-state format version.
func (t *Timer) SnapshotVersion() (uint16, bool) {
	return snapshotVersion, true
}

// StoreSnapshot writes the register and waveform phase; the ring buffer's
// contents are not persisted, matching the rest of this corpus's treatment
// of audio buffers as transient rendering state.
func (t *Timer) StoreSnapshot(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d %.17g %.17g\n", t.register, t.phase, t.decrementAccum)
	return err
}

// LoadSnapshot restores state written by StoreSnapshot.
func (t *Timer) LoadSnapshot(version uint16, r io.Reader) error {
	if version != snapshotVersion {
		return fmt.Errorf("audiotimer: unsupported snapshot version %d", version)
	}
	var register uint16
	if _, err := fmt.Fscanf(r, "%d %g %g\n", &register, &t.phase, &t.decrementAccum); err != nil {
		return fmt.Errorf("audiotimer: reading snapshot: %w", err)
	}
	t.register = uint8(register)
	return nil
}
