package protocol

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/mohsenil85/tuidaw/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestTimeFromNowZeroOrNegativeMeansImmediate(t *testing.T) {
	assert.True(t, TimeFromNow(0).IsZero())
	assert.True(t, TimeFromNow(-time.Second).IsZero())
}

func TestTimeFromNowPositiveDeltaIsFuture(t *testing.T) {
	before := time.Now()
	got := TimeFromNow(50 * time.Millisecond)
	assert.True(t, got.After(before))
}

func TestCreateGroupMessageAddress(t *testing.T) {
	msg := CreateGroupMessage(100, types.AddToTail, 0)
	assert.Equal(t, "/g_new", msg.Address)
	assert.Equal(t, int32(100), msg.Arguments[0])
}

func TestCreateSynthMessageAddress(t *testing.T) {
	msg := CreateSynthMessage("tuidaw_saw", 1000, types.AddToTail, 100, map[string]float32{"freq": 440})
	assert.Equal(t, "/s_new", msg.Address)
	assert.Equal(t, "tuidaw_saw", msg.Arguments[0])
	assert.Equal(t, int32(1000), msg.Arguments[1])
}

func TestMeterPeakDefaultsToZero(t *testing.T) {
	c := Dial("127.0.0.1", 57110)
	left, right := c.MeterPeak()
	assert.Equal(t, 0.0, left)
	assert.Equal(t, 0.0, right)
}

func TestAudioInWaveformDefaultsToNil(t *testing.T) {
	c := Dial("127.0.0.1", 57110)
	assert.Nil(t, c.AudioInWaveform(0))
}

func TestUpdateMeterIsObservedByMeterPeak(t *testing.T) {
	c := Dial("127.0.0.1", 57110)
	c.updateMeter(0.5, 0.25)
	left, right := c.MeterPeak()
	assert.Equal(t, 0.5, left)
	assert.Equal(t, 0.25, right)
}

func TestUpdateWaveformIsObservedByAudioInWaveform(t *testing.T) {
	c := Dial("127.0.0.1", 57110)
	samples := []float32{0.1, -0.2, 0.3}
	c.updateWaveform(7, samples)
	assert.Equal(t, samples, c.AudioInWaveform(7))
	assert.Nil(t, c.AudioInWaveform(8))
}

func TestDecodeWaveformSamplesRoundTripsLittleEndianFloats(t *testing.T) {
	blob := make([]byte, 8)
	binary.LittleEndian.PutUint32(blob[0:4], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(blob[4:8], math.Float32bits(-2.25))
	assert.Equal(t, []float32{1.5, -2.25}, decodeWaveformSamples(blob))
	assert.Nil(t, decodeWaveformSamples(nil))
}
