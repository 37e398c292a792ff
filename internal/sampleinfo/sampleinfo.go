// Package sampleinfo is additive, read-only tooling around a Sample
// instrument's sampler_config (SPEC_FULL.md §3.3): inspecting a backing WAV
// file to report its duration and suggest evenly spaced slice boundaries.
// Grounded in the teacher's internal/getbpm/getbpm.go Length function
// (WAV duration via go-audio/wav), with the tracker-specific filename BPM
// guessing dropped since nothing in this design's scope needs it.
package sampleinfo

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/music"
)

// Info is a WAV file's duration and PCM format, used to validate a sample
// import and to suggest slice boundaries.
type Info struct {
	Seconds    float64
	SampleRate int64
	NumFrames  int64
}

// Inspect opens filename and reports its duration, sample rate, and frame
// count. For PCM data, duration is computed directly from the data chunk
// size; for compressed formats it falls back to the decoder's Duration().
func Inspect(filename string) (Info, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Info{}, fmt.Errorf("sampleinfo: open: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Info{}, fmt.Errorf("sampleinfo: invalid WAV file: %s", filename)
	}
	d.ReadInfo()

	const wavFormatPCM = 1
	const wavFormatExtensible = 65534
	if int(d.WavAudioFormat) != wavFormatPCM && int(d.WavAudioFormat) != wavFormatExtensible {
		var dur time.Duration
		dur, err = d.Duration()
		if err != nil {
			return Info{}, fmt.Errorf("sampleinfo: duration (non-PCM): %w", err)
		}
		return Info{
			Seconds:    dur.Seconds(),
			SampleRate: int64(d.SampleRate),
			NumFrames:  int64(dur.Seconds() * float64(d.SampleRate)),
		}, nil
	}

	if d.SampleRate == 0 {
		return Info{}, fmt.Errorf("sampleinfo: invalid sample rate: 0")
	}
	bytesPerSample := int64(d.BitDepth) / 8
	if bytesPerSample <= 0 {
		return Info{}, fmt.Errorf("sampleinfo: invalid bit depth: %d", d.BitDepth)
	}
	chans := int64(d.NumChans)
	if chans <= 0 {
		return Info{}, fmt.Errorf("sampleinfo: invalid channel count: %d", d.NumChans)
	}

	if !d.WasPCMAccessed() && d.PCMChunk == nil {
		if err := d.FwdToPCM(); err != nil {
			return Info{}, fmt.Errorf("sampleinfo: locate PCM: %w", err)
		}
	}

	totalBytes := d.PCMLen()
	if totalBytes <= 0 {
		return Info{}, fmt.Errorf("sampleinfo: no PCM data")
	}
	frameSize := bytesPerSample * chans
	if frameSize == 0 {
		return Info{}, fmt.Errorf("sampleinfo: invalid frame size")
	}
	frames := totalBytes / frameSize
	return Info{
		Seconds:    float64(frames) / float64(d.SampleRate),
		SampleRate: int64(d.SampleRate),
		NumFrames:  frames,
	}, nil
}

// SuggestedSlice is one evenly spaced boundary pair in the sampler_config's
// normalized 0..1 slice coordinate space (§3.1 SamplerConfig).
type SuggestedSlice struct {
	Start, End float64
}

// SuggestEvenSlices divides the buffer into count evenly spaced slices. A
// count <= 0 returns nil. Positions are normalized 0..1 to match
// model.Slice's coordinate space regardless of the file's actual duration.
func SuggestEvenSlices(count int) []SuggestedSlice {
	if count <= 0 {
		return nil
	}
	slices := make([]SuggestedSlice, count)
	step := 1.0 / float64(count)
	for i := 0; i < count; i++ {
		slices[i] = SuggestedSlice{Start: float64(i) * step, End: float64(i+1) * step}
	}
	return slices
}

// SuggestEvenSlicesNamed divides the buffer into count evenly spaced
// slices, assigning each the next chromatic root note starting at
// rootNote and naming it with music.MidiToNoteName — the "auto chop" path
// a sampler import uses to populate model.Slice entries in one step.
func SuggestEvenSlicesNamed(count, rootNote int) []model.Slice {
	even := SuggestEvenSlices(count)
	slices := make([]model.Slice, len(even))
	for i, s := range even {
		note := rootNote + i
		slices[i] = model.Slice{
			ID:       i,
			Start:    s.Start,
			End:      s.End,
			Name:     music.MidiToNoteName(note),
			RootNote: note,
		}
	}
	return slices
}
