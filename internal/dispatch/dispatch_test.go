package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohsenil85/tuidaw/internal/engine"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/types"
)

func TestQuitAndNavAreNoops(t *testing.T) {
	e := engine.New()
	assert.NoError(t, Dispatch(e, Quit{}))
	assert.NoError(t, Dispatch(e, Nav{Direction: "down"}))
}

func TestInstrumentAddMutatesProjectAndAttemptsRebuild(t *testing.T) {
	e := engine.New()
	require.Empty(t, e.Project.Instruments)

	err := Dispatch(e, Instrument{Action: InstrumentAdd, Source: types.SourceSaw})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
	require.Len(t, e.Project.Instruments, 1)
	assert.Equal(t, types.SourceSaw, e.Project.Instruments[0].Source)
}

func TestInstrumentRemoveDeletesInstrumentAndTrack(t *testing.T) {
	e := engine.New()
	inst := e.Project.AddInstrument(types.SourceSine)

	_ = Dispatch(e, Instrument{Action: InstrumentRemove, InstrumentID: inst.ID})
	assert.Empty(t, e.Project.Instruments)
	_, ok := e.Project.PianoRoll.Tracks[inst.ID]
	assert.False(t, ok)
}

func TestInstrumentSetLevelAndPanUpdateModelWhileDisconnected(t *testing.T) {
	e := engine.New()
	inst := e.Project.AddInstrument(types.SourceSaw)

	err := Dispatch(e, Instrument{Action: InstrumentSetLevel, InstrumentID: inst.ID, Value: 0.42})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
	assert.InDelta(t, 0.42, inst.Level, 1e-9)

	err = Dispatch(e, Instrument{Action: InstrumentSetPan, InstrumentID: inst.ID, Value: -0.5})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
	assert.InDelta(t, -0.5, inst.Pan, 1e-9)
}

func TestInstrumentToggleMuteAndSolo(t *testing.T) {
	e := engine.New()
	inst := e.Project.AddInstrument(types.SourceSaw)

	_ = Dispatch(e, Instrument{Action: InstrumentToggleMute, InstrumentID: inst.ID})
	assert.True(t, inst.Mute)
	_ = Dispatch(e, Instrument{Action: InstrumentToggleMute, InstrumentID: inst.ID})
	assert.False(t, inst.Mute)

	_ = Dispatch(e, Instrument{Action: InstrumentToggleSolo, InstrumentID: inst.ID})
	assert.True(t, inst.Solo)
}

func TestInstrumentNoteOnWhileDisconnectedReturnsNotConnected(t *testing.T) {
	e := engine.New()
	inst := e.Project.AddInstrument(types.SourceSaw)
	err := Dispatch(e, Instrument{Action: InstrumentNoteOn, InstrumentID: inst.ID, Pitch: 60, Velocity: 0.8})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
}

func TestMixerSetBusLevelUnknownBusIsNoop(t *testing.T) {
	e := engine.New()
	err := Dispatch(e, Mixer{Action: MixerSetBusLevel, BusID: 99, Value: 0.5})
	assert.NoError(t, err)
}

func TestMixerToggleMasterMute(t *testing.T) {
	e := engine.New()
	require.False(t, e.Project.MasterMute)
	err := Dispatch(e, Mixer{Action: MixerToggleMasterMute})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
	assert.True(t, e.Project.MasterMute)
}

func TestPianoRollTransportAndNoteEditing(t *testing.T) {
	e := engine.New()
	inst := e.Project.AddInstrument(types.SourceSaw)

	require.NoError(t, Dispatch(e, PianoRoll{Action: TransportPlay}))
	assert.True(t, e.Project.PianoRoll.Playing)
	require.NoError(t, Dispatch(e, PianoRoll{Action: TransportStop}))
	assert.False(t, e.Project.PianoRoll.Playing)

	note := model.Note{Tick: 0, Duration: 120, Pitch: 60, Velocity: 100}
	require.NoError(t, Dispatch(e, PianoRoll{Action: NoteAdd, InstrumentID: inst.ID, Note: note}))
	assert.Len(t, e.Project.PianoRoll.Tracks[inst.ID].Notes, 1)

	require.NoError(t, Dispatch(e, PianoRoll{Action: NoteRemove, InstrumentID: inst.ID, Note: note}))
	assert.Empty(t, e.Project.PianoRoll.Tracks[inst.ID].Notes)
}

func TestSessionSaveAndLoadRoundTrip(t *testing.T) {
	e := engine.New()
	e.Project.AddInstrument(types.SourceSine)
	path := filepath.Join(t.TempDir(), "session.sqlite")

	require.NoError(t, Dispatch(e, Session{Action: SessionSave, Path: path}))

	e2 := engine.New()
	require.NoError(t, Dispatch(e2, Session{Action: SessionLoad, Path: path}))
	require.Len(t, e2.Project.Instruments, 1)
	assert.Equal(t, types.SourceSine, e2.Project.Instruments[0].Source)
}

func TestServerStartWithNoScsynthBinaryReturnsServerSpawnError(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	e := engine.New()
	err := Dispatch(e, Server{Action: ServerStart, Port: 57110})
	assert.ErrorIs(t, err, engineerr.ErrServerSpawn)
}
