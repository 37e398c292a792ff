// Package types holds the small enum-like value types shared across the
// orchestrator: source kinds, filter/effect kinds, automation targets, and
// the scalar parameter value variant.
package types

// SourceType is the tagged variant naming an instrument's sound source.
type SourceType int

const (
	SourceSaw SourceType = iota
	SourceSine
	SourceSquare
	SourceTriangle
	SourceAudioIn
	SourceBusIn
	SourceSample
	SourceKit
	SourceCustom
)

func (s SourceType) String() string {
	switch s {
	case SourceSaw:
		return "saw"
	case SourceSine:
		return "sine"
	case SourceSquare:
		return "square"
	case SourceTriangle:
		return "triangle"
	case SourceAudioIn:
		return "audio_in"
	case SourceBusIn:
		return "bus_in"
	case SourceSample:
		return "sample"
	case SourceKit:
		return "kit"
	case SourceCustom:
		return "custom"
	default:
		return "saw"
	}
}

// SynthDefName returns the tuidaw_* synth definition name for oscillator and
// sampler sources. Custom and Kit sources resolve their def names elsewhere
// (custom definition registry, drum pad per-sample players).
func (s SourceType) SynthDefName() string {
	switch s {
	case SourceSaw:
		return "tuidaw_saw"
	case SourceSine:
		return "tuidaw_sine"
	case SourceSquare:
		return "tuidaw_square"
	case SourceTriangle:
		return "tuidaw_triangle"
	case SourceSample:
		return "tuidaw_sampler"
	default:
		return "tuidaw_saw"
	}
}

// IsVoiced reports whether this source spawns per-note voices. AudioIn and
// BusIn sources are persistent and never voiced.
func (s SourceType) IsVoiced() bool {
	return s != SourceAudioIn && s != SourceBusIn
}

func SourceTypeFromString(s string) SourceType {
	switch s {
	case "sine":
		return SourceSine
	case "square":
		return SourceSquare
	case "triangle":
		return SourceTriangle
	case "audio_in":
		return SourceAudioIn
	case "bus_in":
		return SourceBusIn
	case "sample":
		return SourceSample
	case "kit":
		return SourceKit
	case "custom":
		return SourceCustom
	default:
		return SourceSaw
	}
}

// ScalarKind tags the runtime type of a source parameter value.
type ScalarKind int

const (
	ScalarFloat ScalarKind = iota
	ScalarInt
	ScalarBool
)

// ScalarValue is a named, bounded scalar parameter.
type ScalarValue struct {
	Name  string
	Kind  ScalarKind
	Value float64 // Int/Bool stored as their float64 representation
	Min   float64
	Max   float64
}

func (v ScalarValue) Clamped() float64 {
	if v.Value < v.Min {
		return v.Min
	}
	if v.Value > v.Max {
		return v.Max
	}
	return v.Value
}

// FilterType is the instrument filter kind.
type FilterType int

const (
	FilterLPF FilterType = iota
	FilterHPF
	FilterBPF
)

func (f FilterType) SynthDefName() string {
	switch f {
	case FilterHPF:
		return "tuidaw_hpf"
	case FilterBPF:
		return "tuidaw_bpf"
	default:
		return "tuidaw_lpf"
	}
}

func (f FilterType) String() string {
	switch f {
	case FilterHPF:
		return "hpf"
	case FilterBPF:
		return "bpf"
	default:
		return "lpf"
	}
}

func FilterTypeFromString(s string) FilterType {
	switch s {
	case "hpf":
		return FilterHPF
	case "bpf":
		return FilterBPF
	default:
		return FilterLPF
	}
}

// EffectType is an effect-slot kind.
type EffectType int

const (
	EffectDelay EffectType = iota
	EffectReverb
	EffectGate
)

func (e EffectType) SynthDefName() string {
	switch e {
	case EffectReverb:
		return "tuidaw_reverb"
	case EffectGate:
		return "tuidaw_gate"
	default:
		return "tuidaw_delay"
	}
}

func (e EffectType) String() string {
	switch e {
	case EffectReverb:
		return "reverb"
	case EffectGate:
		return "gate"
	default:
		return "delay"
	}
}

func EffectTypeFromString(s string) EffectType {
	switch s {
	case "reverb":
		return EffectReverb
	case "gate":
		return EffectGate
	default:
		return EffectDelay
	}
}

// LFOShape is the LFO waveform.
type LFOShape int

const (
	LFOSine LFOShape = iota
	LFOSquare
	LFOSaw
	LFOTriangle
)

func (s LFOShape) String() string {
	switch s {
	case LFOSquare:
		return "square"
	case LFOSaw:
		return "saw"
	case LFOTriangle:
		return "triangle"
	default:
		return "sine"
	}
}

func LFOShapeFromString(s string) LFOShape {
	switch s {
	case "square":
		return LFOSquare
	case "saw":
		return LFOSaw
	case "triangle":
		return LFOTriangle
	default:
		return LFOSine
	}
}

// LFOTargetKind names what an instrument's built-in LFO modulates.
type LFOTargetKind int

const (
	LFOTargetFilterCutoff LFOTargetKind = iota
	LFOTargetFilterResonance
	LFOTargetNone
)

// CurveType is an automation point's interpolation curve to the next point.
type CurveType int

const (
	CurveLinear CurveType = iota
	CurveExponential
	CurveStep
	CurveSCurve
)

func (c CurveType) String() string {
	switch c {
	case CurveExponential:
		return "exponential"
	case CurveStep:
		return "step"
	case CurveSCurve:
		return "s_curve"
	default:
		return "linear"
	}
}

func CurveTypeFromString(s string) CurveType {
	switch s {
	case "exponential":
		return CurveExponential
	case "step":
		return CurveStep
	case "s_curve":
		return CurveSCurve
	default:
		return CurveLinear
	}
}

// AutomationTargetKind tags which parameter family an automation lane drives.
type AutomationTargetKind int

const (
	TargetInstrumentLevel AutomationTargetKind = iota
	TargetInstrumentPan
	TargetFilterCutoff
	TargetFilterResonance
	TargetEffectParam
	TargetSamplerRate
	TargetSamplerAmp
)

// AutomationTarget identifies the exact parameter an automation lane drives.
type AutomationTarget struct {
	Kind         AutomationTargetKind
	InstrumentID uint32
	EffectIndex  int // valid only for TargetEffectParam; indexes the model's effect list
	ParamIndex   int // valid only for TargetEffectParam; indexes that effect's param list
}

func (t AutomationTarget) Name() string {
	switch t.Kind {
	case TargetInstrumentLevel:
		return "strip_level"
	case TargetInstrumentPan:
		return "strip_pan"
	case TargetFilterCutoff:
		return "filter_cutoff"
	case TargetFilterResonance:
		return "filter_resonance"
	case TargetEffectParam:
		return "effect_param"
	case TargetSamplerRate:
		return "sampler_rate"
	case TargetSamplerAmp:
		return "sampler_amp"
	default:
		return "strip_level"
	}
}

// OutputKind tags an instrument's mixer output destination.
type OutputKind int

const (
	OutputMaster OutputKind = iota
	OutputBus
)

// OutputTarget is an instrument's resolved mixer destination.
type OutputTarget struct {
	Kind  OutputKind
	BusID int // 1..8, valid only when Kind == OutputBus
}

// LoopMode is a sampler voice's buffer playback mode.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopForward
	LoopPingPong
)

func LoopModeFromString(s string) LoopMode {
	switch s {
	case "forward":
		return LoopForward
	case "ping_pong":
		return LoopPingPong
	default:
		return LoopNone
	}
}

func (m LoopMode) String() string {
	switch m {
	case LoopForward:
		return "forward"
	case LoopPingPong:
		return "ping_pong"
	default:
		return "none"
	}
}

// AddAction mirrors the server's node-placement enum. The orchestrator only
// ever uses AddToTail and AddAfter (§6).
type AddAction int

const (
	AddToHead AddAction = iota
	AddToTail
	AddBefore
	AddAfter
	AddReplace
)
