package voice

import (
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/mohsenil85/tuidaw/internal/bus"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/idalloc"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/routing"
	"github.com/mohsenil85/tuidaw/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTuningA4 = 440.0

type fakeSender struct {
	bundles [][]*osc.Message
	freed   []int32
}

func (f *fakeSender) SendBundle(messages []*osc.Message, t time.Time) error {
	f.bundles = append(f.bundles, messages)
	return nil
}

func (f *fakeSender) FreeNode(id int32) error {
	f.freed = append(f.freed, id)
	return nil
}

// fakeBuffers is a BufferLookup with a fixed set of loaded buffer ids,
// standing in for Engine's sampleBuffers map in tests.
type fakeBuffers map[int]int32

func (f fakeBuffers) GetSCBufnum(bufferID int) (int32, bool) {
	bufnum, ok := f[bufferID]
	return bufnum, ok
}

func newManager() (*Manager, *int64) {
	tick := new(int64)
	clock := func() int64 {
		*tick++
		return *tick
	}
	return NewManager(bus.New(), idalloc.NewNodeIDs(), clock), tick
}

func sawChain() *routing.InstrumentChain {
	return &routing.InstrumentChain{SourceOutBus: 16}
}

func TestSpawnVoiceWhileDisconnected(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	err := m.SpawnVoice(inst, sawChain(), 69, 1.0, 0, testTuningA4, false, &fakeSender{}, fakeBuffers{})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
}

func TestSpawnVoiceEmitsSingleBundleWithThreeMessages(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	sender := &fakeSender{}
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 69, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	require.Len(t, sender.bundles, 1)
	assert.Len(t, sender.bundles[0], 3) // g_new, s_new(midi), s_new(source) in one atomic bundle
}

func TestSpawnVoiceAddsTableEntry(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 69, 1.0, 0, testTuningA4, true, &fakeSender{}, fakeBuffers{}))
	assert.Equal(t, 1, m.Count(0))
}

func TestAudioInNotVoiced(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceAudioIn)
	sender := &fakeSender{}
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 69, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	assert.Equal(t, 0, m.Count(0))
	assert.Empty(t, sender.bundles)
}

func TestVoiceCapAndOldestFirstStealing(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	sender := &fakeSender{}
	for pitch := 60; pitch < 60+model.MaxVoicesPerInstrument; pitch++ {
		require.NoError(t, m.SpawnVoice(inst, sawChain(), pitch, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	}
	assert.Equal(t, model.MaxVoicesPerInstrument, m.Count(0))

	oldestGroup := m.Voices(0)[0].GroupID
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 76, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))

	assert.Equal(t, model.MaxVoicesPerInstrument, m.Count(0))
	assert.Contains(t, sender.freed, oldestGroup)
	for _, v := range m.Voices(0) {
		assert.NotEqual(t, 60, v.Pitch)
	}
}

func TestReleaseVoiceSendsTwoBundlesAndRemovesEntry(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	sender := &fakeSender{}
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 69, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	sender.bundles = nil

	require.NoError(t, m.ReleaseVoice(inst, 69, 0, true, sender))
	assert.Len(t, sender.bundles, 2)
	assert.Equal(t, 0, m.Count(0))
}

func TestReleaseVoiceAtMostOnce(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	sender := &fakeSender{}
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 69, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	require.NoError(t, m.ReleaseVoice(inst, 69, 0, true, sender))
	sender.bundles = nil
	require.NoError(t, m.ReleaseVoice(inst, 69, 0, true, sender))
	assert.Empty(t, sender.bundles)
}

func TestMonoCollapseReleasesPriorVoiceBeforeSpawning(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	inst.Polyphonic = false
	sender := &fakeSender{}
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 60, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 64, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	assert.Equal(t, 1, m.Count(0))
	assert.Equal(t, 64, m.Voices(0)[0].Pitch)
}

func TestSampleSourceMissingBufferReturnsBufferNotLoaded(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSample)
	sender := &fakeSender{}
	err := m.SpawnVoice(inst, sawChain(), 60, 1.0, 0, testTuningA4, true, sender, fakeBuffers{})
	assert.ErrorIs(t, err, engineerr.ErrBufferNotLoaded)
	assert.Equal(t, 0, m.Count(0))
	assert.Empty(t, sender.bundles)
}

// TestSampleSourceUnloadedBufferReturnsBufferNotLoaded covers the case where
// the sampler config names a buffer id but no load_sample ever populated the
// buffer registry for it: BufferID must not be treated as the server bufnum
// directly (§4.4 Scenario F).
func TestSampleSourceUnloadedBufferReturnsBufferNotLoaded(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSample)
	bufferID := 7
	inst.SamplerConfig.BufferID = &bufferID
	sender := &fakeSender{}

	err := m.SpawnVoice(inst, sawChain(), 60, 1.0, 0, testTuningA4, true, sender, fakeBuffers{})
	assert.ErrorIs(t, err, engineerr.ErrBufferNotLoaded)
	assert.Equal(t, 0, m.Count(0))
	assert.Empty(t, sender.bundles)
}

func TestSampleSourceLoadedBufferSpawnsVoiceWithBufnum(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSample)
	bufferID := 7
	inst.SamplerConfig.BufferID = &bufferID
	sender := &fakeSender{}
	buffers := fakeBuffers{bufferID: 103}

	require.NoError(t, m.SpawnVoice(inst, sawChain(), 60, 1.0, 0, testTuningA4, true, sender, buffers))
	assert.Equal(t, 1, m.Count(0))
}

func TestReleaseAllVoicesFreesImmediatelyAndClearsTable(t *testing.T) {
	m, _ := newManager()
	inst := model.NewInstrument(0, types.SourceSaw)
	sender := &fakeSender{}
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 60, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	require.NoError(t, m.SpawnVoice(inst, sawChain(), 64, 1.0, 0, testTuningA4, true, sender, fakeBuffers{}))
	m.ReleaseAllVoices(sender)
	assert.Equal(t, 0, m.Count(0))
	assert.Len(t, sender.freed, 2)
}
