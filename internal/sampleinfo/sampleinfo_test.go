package sampleinfo

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePCMWav hand-assembles a minimal 16-bit PCM mono WAV file so the test
// does not depend on a fixture file shipped with the repo (none exist, per
// this module's build-from-scratch project layout).
func writePCMWav(t *testing.T, path string, sampleRate int, numFrames int) {
	t.Helper()
	const bitsPerSample = 16
	const numChannels = 1
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := numFrames * blockAlign

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	// Silence is fine; Inspect only reads structure, not sample values.

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestInspectPCMWavReportsDurationAndFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writePCMWav(t, path, 44100, 44100) // exactly one second

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, int64(44100), info.SampleRate)
	assert.Equal(t, int64(44100), info.NumFrames)
	assert.InDelta(t, 1.0, info.Seconds, 1e-6)
}

func TestInspectMissingFileErrors(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestInspectNotAWavFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notawav.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	_, err := Inspect(path)
	assert.Error(t, err)
}

func TestSuggestEvenSlicesDividesBufferEvenly(t *testing.T) {
	slices := SuggestEvenSlices(4)
	require.Len(t, slices, 4)
	assert.Equal(t, SuggestedSlice{Start: 0, End: 0.25}, slices[0])
	assert.Equal(t, SuggestedSlice{Start: 0.75, End: 1.0}, slices[3])
	for _, s := range slices {
		assert.Less(t, s.Start, s.End)
		assert.GreaterOrEqual(t, s.Start, 0.0)
		assert.LessOrEqual(t, s.End, 1.0)
	}
}

func TestSuggestEvenSlicesNonPositiveCountReturnsNil(t *testing.T) {
	assert.Nil(t, SuggestEvenSlices(0))
	assert.Nil(t, SuggestEvenSlices(-1))
}
