// Package model holds the pure project data: instruments, buses, piano
// roll, automation, and custom synth definitions. Nothing in this package
// touches the network; routing, voice, and control packages project this
// data onto a live server.
package model

import (
	"sort"

	"github.com/mohsenil85/tuidaw/internal/types"
)

// NumBuses is the fixed bus count (§3.1): the bus list is sized at project
// creation and never grows or shrinks.
const NumBuses = 8

// MaxVoicesPerInstrument is the per-instrument voice cap (§4.4).
const MaxVoicesPerInstrument = 16

// MusicalSettings is the project-wide tempo/key/scale configuration.
type MusicalSettings struct {
	BPM          float64
	Key          int // 0-11, C=0
	Scale        string
	TuningA4     float64
	TimeSigNum   int
	TimeSigDenom int
	Snap         bool
	TicksPerBeat int
}

// DefaultMusicalSettings matches the embedded defaults in internal/config.
func DefaultMusicalSettings() MusicalSettings {
	return MusicalSettings{
		BPM: 120, Key: 0, Scale: "major", TuningA4: 440.0,
		TimeSigNum: 4, TimeSigDenom: 4, Snap: false, TicksPerBeat: 480,
	}
}

// Send is a mixer send from an instrument to a bus. The project invariant
// (§3.1) is exactly one Send entry per bus, in bus order.
type Send struct {
	BusID   int
	Level   float64
	Enabled bool
}

// EffectSlot is one entry in an instrument's effect chain.
type EffectSlot struct {
	Type    types.EffectType
	Enabled bool
	Params  []types.ScalarValue
}

// Filter is an instrument's optional filter stage.
type Filter struct {
	Type          types.FilterType
	Cutoff        types.ScalarValue
	Resonance     types.ScalarValue
	CutoffModable bool // true when the LFO target is FilterCutoff
}

// LFO is an instrument's built-in low-frequency oscillator.
type LFO struct {
	Enabled bool
	RateHz  float64
	Depth   float64 // 0..1
	Shape   types.LFOShape
	Target  types.LFOTargetKind
}

// Envelope is an amplitude ADSR envelope, times in seconds.
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64 // 0..1
	Release float64
}

// Slice is a named region of a sample buffer, positions normalized 0..1.
type Slice struct {
	ID       int
	Start    float64
	End      float64
	Name     string
	RootNote int
}

// SamplerConfig is present iff Instrument.Source == SourceSample.
type SamplerConfig struct {
	BufferID      *int
	LoopMode      types.LoopMode
	PitchTracking bool
	Slices        []Slice
}

// SliceForNote returns the slice whose RootNote matches pitch, or the whole
// buffer (0.0, 1.0) when no slice is assigned to that pitch.
func (s *SamplerConfig) SliceForNote(pitch int) (start, end float64) {
	for _, sl := range s.Slices {
		if sl.RootNote == pitch {
			return sl.Start, sl.End
		}
	}
	return 0.0, 1.0
}

// DrumPad is one of a Kit instrument's sixteen sample slots.
type DrumPad struct {
	BufferID *int
	Path     string
	Name     string
	Level    float64
}

// DrumStep is one cell of a drum pattern's pad x step grid.
type DrumStep struct {
	Active   bool
	Velocity int
}

// DrumPattern is a pad x step grid of up to 64 steps.
type DrumPattern struct {
	Length int
	Steps  [][]DrumStep // [pad][step]
}

// DrumSequencer is present iff Instrument.Source == SourceKit.
type DrumSequencer struct {
	Pads           [16]DrumPad
	Patterns       [4]DrumPattern
	CurrentPattern int
	Playing        bool
}

// ModulationSourceKind tags a supplemental modulation's source: either the
// instrument's own LFO, or another instrument's output level.
type ModulationSourceKind int

const (
	ModSourceOwnLFO ModulationSourceKind = iota
	ModSourceInstrumentLevel
)

// Modulation is a supplemental, more general modulation binding than the
// single built-in LFO: it lets an instrument's own LFO, or another
// instrument's output level, drive any automatable parameter.
type Modulation struct {
	ID               int
	Source           ModulationSourceKind
	SourceInstrument uint32 // valid when Source == ModSourceInstrumentLevel
	Target           types.AutomationTarget
	Depth            float64 // 0..1
	Enabled          bool
}

// Instrument is a single mixer strip / sound source (§3.1).
type Instrument struct {
	ID           uint32
	Name         string
	Source       types.SourceType
	CustomID     int // valid iff Source == SourceCustom
	SourceParams []types.ScalarValue
	Filter       *Filter
	Effects      []EffectSlot
	LFO          LFO
	AmpEnvelope  Envelope
	Polyphonic   bool

	Level        float64
	Pan          float64
	Mute         bool
	Solo         bool
	OutputTarget types.OutputTarget
	Sends        []Send

	SamplerConfig *SamplerConfig
	DrumSequencer *DrumSequencer

	Modulations []Modulation
}

// NewInstrument creates an instrument with one Send per bus and defaults
// matching the source kind's optional sub-entities (§3.1 invariants).
func NewInstrument(id uint32, source types.SourceType) *Instrument {
	sends := make([]Send, NumBuses)
	for i := range sends {
		sends[i] = Send{BusID: i + 1, Level: 0, Enabled: false}
	}
	inst := &Instrument{
		ID:           id,
		Source:       source,
		AmpEnvelope:  Envelope{Attack: 0.01, Decay: 0.1, Sustain: 0.7, Release: 0.3},
		Polyphonic:   true,
		Level:        0.8,
		Pan:          0,
		OutputTarget: types.OutputTarget{Kind: types.OutputMaster},
		Sends:        sends,
	}
	switch source {
	case types.SourceSample:
		inst.SamplerConfig = &SamplerConfig{LoopMode: types.LoopNone}
	case types.SourceKit:
		ds := &DrumSequencer{}
		for p := range ds.Patterns {
			ds.Patterns[p] = DrumPattern{Length: 16, Steps: make([][]DrumStep, 16)}
			for pad := range ds.Patterns[p].Steps {
				ds.Patterns[p].Steps[pad] = make([]DrumStep, 16)
			}
		}
		inst.DrumSequencer = ds
	}
	return inst
}

// Bus is a mixer sub-mix channel (§3.1). The set is fixed at project
// creation; ids run 1..NumBuses.
type Bus struct {
	ID    int
	Name  string
	Level float64
	Pan   float64
	Mute  bool
	Solo  bool
}

// Note is a single piano-roll event.
type Note struct {
	Tick     int
	Duration int
	Pitch    int // 0..127
	Velocity int // 1..127
}

// Track is one instrument's lane of notes.
type Track struct {
	Notes      []Note
	Polyphonic bool
}

// PianoRoll is the global transport plus per-instrument note tracks.
type PianoRoll struct {
	BPM          float64
	TimeSigNum   int
	TimeSigDenom int
	TicksPerBeat int

	Playing   bool
	Playhead  int
	Looping   bool
	LoopStart int
	LoopEnd   int

	Tracks map[uint32]*Track
}

func NewPianoRoll(settings MusicalSettings) *PianoRoll {
	return &PianoRoll{
		BPM: settings.BPM, TimeSigNum: settings.TimeSigNum, TimeSigDenom: settings.TimeSigDenom,
		TicksPerBeat: settings.TicksPerBeat, Tracks: make(map[uint32]*Track),
	}
}

// AutomationPoint is one keyframe of an automation lane.
type AutomationPoint struct {
	Tick  int
	Value float64 // 0..1
	Curve types.CurveType
}

// AutomationLane drives a single automatable parameter over time.
type AutomationLane struct {
	ID       int
	Target   types.AutomationTarget
	Enabled  bool
	MinValue float64
	MaxValue float64
	Points   []AutomationPoint
}

// AddPoint inserts or replaces a point at the given tick, keeping Points
// sorted by tick (§3.1: "duplicates at the same tick replace").
func (l *AutomationLane) AddPoint(p AutomationPoint) {
	for i, existing := range l.Points {
		if existing.Tick == p.Tick {
			l.Points[i] = p
			return
		}
	}
	l.Points = append(l.Points, p)
	sort.Slice(l.Points, func(i, j int) bool { return l.Points[i].Tick < l.Points[j].Tick })
}

// CustomSynthDefParam is one parameter of a user-supplied synth definition.
type CustomSynthDefParam struct {
	Name    string
	Default float64
	Min     float64
	Max     float64
}

// CustomSynthDef describes a user-imported synth definition (§3.1, §6).
type CustomSynthDef struct {
	ID             int
	DisplayName    string
	DefinitionName string
	SourcePath     string
	Params         []CustomSynthDefParam
}

// CustomSynthDefRegistry assigns monotonic ids to imported definitions.
type CustomSynthDefRegistry struct {
	defs   []CustomSynthDef
	nextID int
}

func NewCustomSynthDefRegistry() *CustomSynthDefRegistry {
	return &CustomSynthDefRegistry{nextID: 1}
}

func (r *CustomSynthDefRegistry) Add(def CustomSynthDef) int {
	def.ID = r.nextID
	r.nextID++
	r.defs = append(r.defs, def)
	return def.ID
}

func (r *CustomSynthDefRegistry) Get(id int) (CustomSynthDef, bool) {
	for _, d := range r.defs {
		if d.ID == id {
			return d, true
		}
	}
	return CustomSynthDef{}, false
}

func (r *CustomSynthDefRegistry) All() []CustomSynthDef { return r.defs }

// NewCustomSynthDefRegistryFromDefs rebuilds a registry from previously
// persisted definitions (§4.8 load path), resuming the id counter above the
// highest id present.
func NewCustomSynthDefRegistryFromDefs(defs []CustomSynthDef) *CustomSynthDefRegistry {
	r := &CustomSynthDefRegistry{defs: defs, nextID: 1}
	for _, d := range defs {
		if d.ID >= r.nextID {
			r.nextID = d.ID + 1
		}
	}
	return r
}

// Project is the single top-level document (§3.1).
type Project struct {
	Settings    MusicalSettings
	Instruments []*Instrument
	Buses       [NumBuses]Bus
	MasterLevel float64
	MasterMute  bool
	PianoRoll   *PianoRoll
	Automation  []*AutomationLane
	CustomDefs  *CustomSynthDefRegistry

	nextInstrumentID uint32
	nextAutomationID int
}

// NewProject creates an empty project with default buses and settings.
func NewProject() *Project {
	settings := DefaultMusicalSettings()
	p := &Project{
		Settings:    settings,
		MasterLevel: 1.0,
		PianoRoll:   NewPianoRoll(settings),
		CustomDefs:  NewCustomSynthDefRegistry(),
	}
	for i := 0; i < NumBuses; i++ {
		p.Buses[i] = Bus{ID: i + 1, Name: "", Level: 1.0, Pan: 0}
	}
	return p
}

// AddInstrument appends a new instrument with a fresh, monotonic id and
// creates its piano-roll track.
func (p *Project) AddInstrument(source types.SourceType) *Instrument {
	id := p.nextInstrumentID
	p.nextInstrumentID++
	inst := NewInstrument(id, source)
	p.Instruments = append(p.Instruments, inst)
	p.PianoRoll.Tracks[id] = &Track{Polyphonic: inst.Polyphonic}
	return inst
}

// RemoveInstrument deletes the instrument and its piano-roll track (§3.1:
// "removing an instrument removes its track").
func (p *Project) RemoveInstrument(id uint32) {
	for i, inst := range p.Instruments {
		if inst.ID == id {
			p.Instruments = append(p.Instruments[:i], p.Instruments[i+1:]...)
			break
		}
	}
	delete(p.PianoRoll.Tracks, id)
}

// NextInstrumentID and NextAutomationID expose the id counters for
// persistence (§4.8); SetNextIDs restores them on load.
func (p *Project) NextInstrumentID() uint32  { return p.nextInstrumentID }
func (p *Project) NextAutomationID() int     { return p.nextAutomationID }
func (p *Project) SetNextIDs(instrumentID uint32, automationID int) {
	p.nextInstrumentID = instrumentID
	p.nextAutomationID = automationID
}

func (p *Project) Instrument(id uint32) (*Instrument, bool) {
	for _, inst := range p.Instruments {
		if inst.ID == id {
			return inst, true
		}
	}
	return nil, false
}

// AddAutomationLane appends a lane with a fresh monotonic id.
func (p *Project) AddAutomationLane(target types.AutomationTarget) *AutomationLane {
	id := p.nextAutomationID
	p.nextAutomationID++
	lane := &AutomationLane{ID: id, Target: target, Enabled: true, MinValue: 0, MaxValue: 1}
	p.Automation = append(p.Automation, lane)
	return lane
}

// AnyInstrumentSoloed reports whether at least one instrument has Solo set.
func (p *Project) AnyInstrumentSoloed() bool {
	for _, inst := range p.Instruments {
		if inst.Solo {
			return true
		}
	}
	return false
}

// AnyBusSoloed reports whether at least one bus has Solo set.
func (p *Project) AnyBusSoloed() bool {
	for _, b := range p.Buses {
		if b.Solo {
			return true
		}
	}
	return false
}

// EffectiveInstrumentMute computes instrument i's effective mute (§4.7):
// when any instrument is soloed, every non-soloed instrument is effectively
// muted regardless of its explicit Mute field; otherwise Mute applies as-is.
// This is a pure function of the solo set, not the caller (Property 6).
func EffectiveInstrumentMute(inst *Instrument, anySoloed bool) bool {
	if anySoloed {
		return !inst.Solo
	}
	return inst.Mute
}

// EffectiveBusMute applies the same rule, symmetrically, to mixer buses.
func EffectiveBusMute(b *Bus, anySoloed bool) bool {
	if anySoloed {
		return !b.Solo
	}
	return b.Mute
}
