// Package ticks converts between piano-roll ticks, beats, and wall-clock
// seconds, and computes track extents and loop wrapping.
package ticks

// DefaultTicksPerBeat matches the project model's default (§3.1 PianoRoll).
const DefaultTicksPerBeat = 480

// SecondsPerTick returns the duration of one tick at the given tempo.
func SecondsPerTick(bpm float64, ticksPerBeat int) float64 {
	if bpm <= 0 || ticksPerBeat <= 0 {
		return 0
	}
	secondsPerBeat := 60.0 / bpm
	return secondsPerBeat / float64(ticksPerBeat)
}

// TicksToSeconds converts a tick offset to seconds at the given tempo.
func TicksToSeconds(tick int, bpm float64, ticksPerBeat int) float64 {
	return float64(tick) * SecondsPerTick(bpm, ticksPerBeat)
}

// SecondsToTicks is the inverse of TicksToSeconds, rounding to the nearest tick.
func SecondsToTicks(seconds float64, bpm float64, ticksPerBeat int) int {
	spt := SecondsPerTick(bpm, ticksPerBeat)
	if spt == 0 {
		return 0
	}
	return int(seconds/spt + 0.5)
}

// Note is the minimal shape ticks math needs from a piano-roll note.
type Note struct {
	Tick     int
	Duration int
}

// TrackExtent returns the tick at which the last note in a track ends, i.e.
// the track's length in ticks. Returns 0 for an empty track.
func TrackExtent(notes []Note) int {
	extent := 0
	for _, n := range notes {
		end := n.Tick + n.Duration
		if end > extent {
			extent = end
		}
	}
	return extent
}

// WrapLoop wraps a playhead tick into [loopStart, loopEnd) when looping is
// enabled and the playhead has reached or passed loopEnd. loopEnd must be
// greater than loopStart; otherwise the tick is returned unchanged.
func WrapLoop(tick, loopStart, loopEnd int, looping bool) int {
	if !looping || loopEnd <= loopStart {
		return tick
	}
	span := loopEnd - loopStart
	if tick < loopEnd {
		return tick
	}
	offset := (tick - loopStart) % span
	return loopStart + offset
}
