// Package dispatch implements the orchestrator-facing half of the dispatch
// façade (§1, §4.9): translating a closed set of intents coming from the
// (excluded) terminal UI into project-model mutations and engine/protocol
// calls. It never talks to the server directly; every side effect runs
// through an *engine.Engine.
package dispatch

import (
	"github.com/mohsenil85/tuidaw/internal/engine"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/sampleinfo"
	"github.com/mohsenil85/tuidaw/internal/types"
)

// Intent is the closed set of external actions the façade accepts (§4.9).
// Concrete intents are unexported-method-tagged so only types declared in
// this package can satisfy Intent, keeping the set closed.
type Intent interface {
	isIntent()
}

// Quit requests the host application shut down. The façade performs no
// engine action for it; callers check for it with a type switch before
// calling Dispatch.
type Quit struct{}

func (Quit) isIntent() {}

// Nav moves focus between UI panes/fields. The façade performs no engine
// action for it either; it exists in the closed set because the UI and
// dispatch share one intent type even though navigation never reaches the
// engine.
type Nav struct{ Direction string }

func (Nav) isIntent() {}

// InstrumentAction names one instrument-strip operation.
type InstrumentAction int

const (
	InstrumentAdd InstrumentAction = iota
	InstrumentRemove
	InstrumentSetLevel
	InstrumentSetPan
	InstrumentToggleMute
	InstrumentToggleSolo
	InstrumentSetSourceParam
	InstrumentSetFilterCutoff
	InstrumentSetFilterResonance
	InstrumentNoteOn
	InstrumentNoteOff
	InstrumentLoadSample
	InstrumentFreeSample
	InstrumentAutoSlice
)

// Instrument carries one instrument-strip intent (§4.9 "Strip/Instrument").
type Instrument struct {
	Action       InstrumentAction
	InstrumentID uint32
	Source       types.SourceType // InstrumentAdd
	ParamName    string           // InstrumentSetSourceParam
	Value        float64          // level/pan/cutoff/resonance/param value
	Pitch        int              // note on/off
	Velocity     float64          // note on
	Path         string           // InstrumentLoadSample: WAV file path
	BufferID     int              // InstrumentFreeSample
	SliceCount   int              // InstrumentAutoSlice
	RootNote     int              // InstrumentAutoSlice: root note of the first slice
}

func (Instrument) isIntent() {}

// MixerAction names one mixer-bus or master operation.
type MixerAction int

const (
	MixerSetBusLevel MixerAction = iota
	MixerSetBusPan
	MixerToggleBusMute
	MixerToggleBusSolo
	MixerSetMasterLevel
	MixerToggleMasterMute
)

// Mixer carries one mixer intent (§4.9 "Mixer").
type Mixer struct {
	Action MixerAction
	BusID  int
	Value  float64
}

func (Mixer) isIntent() {}

// PianoRollAction names one transport or note-editing operation.
type PianoRollAction int

const (
	TransportPlay PianoRollAction = iota
	TransportStop
	TransportToggleLoop
	NoteAdd
	NoteRemove
)

// PianoRoll carries one piano-roll intent (§4.9 "PianoRoll").
type PianoRoll struct {
	Action       PianoRollAction
	InstrumentID uint32
	Note         model.Note
}

func (PianoRoll) isIntent() {}

// ServerAction names one server-lifecycle operation.
type ServerAction int

const (
	ServerStart ServerAction = iota
	ServerStop
	ServerConnect
	ServerDisconnect
	ServerCompileSynthdefs
	ServerLoadSynthdefs
)

// Server carries one server-lifecycle intent (§4.9 "Server").
type Server struct {
	Action             ServerAction
	Port               int
	Host               string
	FeedbackListenAddr string
	Path               string
}

func (Server) isIntent() {}

// SessionAction names one project-persistence operation.
type SessionAction int

const (
	SessionNew SessionAction = iota
	SessionSave
	SessionLoad
)

// Session carries one project-persistence intent (§4.9 "Session").
type Session struct {
	Action SessionAction
	Path   string
}

func (Session) isIntent() {}

// Dispatch applies one intent to e, performing whichever of a full routing
// rebuild, a live control-plane update, or a spawn_voice/release_voice call
// the action requires (§4.9). Quit and Nav are accepted but are no-ops here
// — the host application handles them before ever calling Dispatch.
func Dispatch(e *engine.Engine, intent Intent) error {
	switch in := intent.(type) {
	case Quit, Nav:
		return nil
	case Instrument:
		return dispatchInstrument(e, in)
	case Mixer:
		return dispatchMixer(e, in)
	case PianoRoll:
		return dispatchPianoRoll(e, in)
	case Server:
		return dispatchServer(e, in)
	case Session:
		return dispatchSession(e, in)
	default:
		return nil
	}
}

func dispatchInstrument(e *engine.Engine, in Instrument) error {
	switch in.Action {
	case InstrumentAdd:
		e.Project.AddInstrument(in.Source)
		return e.Rebuild()
	case InstrumentRemove:
		e.Project.RemoveInstrument(in.InstrumentID)
		return e.Rebuild()
	case InstrumentSetLevel:
		inst, ok := e.Project.Instrument(in.InstrumentID)
		if !ok {
			return nil
		}
		inst.Level = in.Value
		return e.RefreshStripMixerParams()
	case InstrumentSetPan:
		inst, ok := e.Project.Instrument(in.InstrumentID)
		if !ok {
			return nil
		}
		inst.Pan = in.Value
		return e.RefreshStripMixerParams()
	case InstrumentToggleMute:
		inst, ok := e.Project.Instrument(in.InstrumentID)
		if !ok {
			return nil
		}
		inst.Mute = !inst.Mute
		return e.RefreshStripMixerParams()
	case InstrumentToggleSolo:
		inst, ok := e.Project.Instrument(in.InstrumentID)
		if !ok {
			return nil
		}
		inst.Solo = !inst.Solo
		return e.RefreshStripMixerParams()
	case InstrumentSetSourceParam:
		return e.SetSourceParam(in.InstrumentID, in.ParamName, float32(in.Value))
	case InstrumentSetFilterCutoff:
		return e.ApplyAutomation(in.InstrumentID, types.AutomationTarget{Kind: types.TargetFilterCutoff, InstrumentID: in.InstrumentID}, in.Value)
	case InstrumentSetFilterResonance:
		return e.ApplyAutomation(in.InstrumentID, types.AutomationTarget{Kind: types.TargetFilterResonance, InstrumentID: in.InstrumentID}, in.Value)
	case InstrumentNoteOn:
		return e.SpawnVoice(in.InstrumentID, in.Pitch, in.Velocity, 0)
	case InstrumentNoteOff:
		return e.ReleaseVoice(in.InstrumentID, in.Pitch, 0)
	case InstrumentLoadSample:
		_, err := e.LoadSample(in.InstrumentID, in.Path)
		return err
	case InstrumentFreeSample:
		return e.FreeSample(in.BufferID)
	case InstrumentAutoSlice:
		inst, ok := e.Project.Instrument(in.InstrumentID)
		if !ok || inst.SamplerConfig == nil {
			return nil
		}
		inst.SamplerConfig.Slices = sampleinfo.SuggestEvenSlicesNamed(in.SliceCount, in.RootNote)
		return nil
	default:
		return nil
	}
}

func dispatchMixer(e *engine.Engine, in Mixer) error {
	switch in.Action {
	case MixerSetBusLevel:
		bus, ok := findBus(e, in.BusID)
		if !ok {
			return nil
		}
		bus.Level = in.Value
		return e.SetBusMixerParams(bus.ID, float32(bus.Level), bus.Mute, float32(bus.Pan))
	case MixerSetBusPan:
		bus, ok := findBus(e, in.BusID)
		if !ok {
			return nil
		}
		bus.Pan = in.Value
		return e.SetBusMixerParams(bus.ID, float32(bus.Level), bus.Mute, float32(bus.Pan))
	case MixerToggleBusMute:
		bus, ok := findBus(e, in.BusID)
		if !ok {
			return nil
		}
		bus.Mute = !bus.Mute
		return e.SetBusMixerParams(bus.ID, float32(bus.Level), bus.Mute, float32(bus.Pan))
	case MixerToggleBusSolo:
		bus, ok := findBus(e, in.BusID)
		if !ok {
			return nil
		}
		bus.Solo = !bus.Solo
		return e.RefreshBusMixerParams()
	case MixerSetMasterLevel:
		e.Project.MasterLevel = in.Value
		return e.RefreshStripMixerParams()
	case MixerToggleMasterMute:
		e.Project.MasterMute = !e.Project.MasterMute
		return e.RefreshStripMixerParams()
	default:
		return nil
	}
}

func findBus(e *engine.Engine, busID int) (*model.Bus, bool) {
	for i := range e.Project.Buses {
		if e.Project.Buses[i].ID == busID {
			return &e.Project.Buses[i], true
		}
	}
	return nil, false
}

func dispatchPianoRoll(e *engine.Engine, in PianoRoll) error {
	switch in.Action {
	case TransportPlay:
		e.Project.PianoRoll.Playing = true
		return nil
	case TransportStop:
		e.Project.PianoRoll.Playing = false
		return nil
	case TransportToggleLoop:
		e.Project.PianoRoll.Looping = !e.Project.PianoRoll.Looping
		return nil
	case NoteAdd:
		track, ok := e.Project.PianoRoll.Tracks[in.InstrumentID]
		if !ok {
			return nil
		}
		track.Notes = append(track.Notes, in.Note)
		return nil
	case NoteRemove:
		track, ok := e.Project.PianoRoll.Tracks[in.InstrumentID]
		if !ok {
			return nil
		}
		for i, n := range track.Notes {
			if n.Tick == in.Note.Tick && n.Pitch == in.Note.Pitch {
				track.Notes = append(track.Notes[:i], track.Notes[i+1:]...)
				break
			}
		}
		return nil
	default:
		return nil
	}
}

func dispatchServer(e *engine.Engine, in Server) error {
	switch in.Action {
	case ServerStart:
		return e.StartServer(in.Port)
	case ServerStop:
		e.StopServer()
		return nil
	case ServerConnect:
		return e.Connect(in.Host, in.Port, in.FeedbackListenAddr)
	case ServerDisconnect:
		e.Disconnect()
		return nil
	case ServerCompileSynthdefs:
		return e.CompileSynthdefs(in.Path)
	case ServerLoadSynthdefs:
		return e.LoadSynthdefs(in.Path)
	default:
		return nil
	}
}

func dispatchSession(e *engine.Engine, in Session) error {
	switch in.Action {
	case SessionNew:
		*e = *engine.New()
		return nil
	case SessionSave:
		return e.SaveProject(in.Path)
	case SessionLoad:
		return e.OpenProject(in.Path)
	default:
		return nil
	}
}
