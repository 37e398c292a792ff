package types

import "testing"

import "github.com/stretchr/testify/assert"

func TestSourceTypeRoundTrip(t *testing.T) {
	for _, s := range []SourceType{SourceSaw, SourceSine, SourceSquare, SourceTriangle,
		SourceAudioIn, SourceBusIn, SourceSample, SourceKit, SourceCustom} {
		assert.Equal(t, s, SourceTypeFromString(s.String()))
	}
}

func TestSourceTypeUnknownDefaultsToSaw(t *testing.T) {
	assert.Equal(t, SourceSaw, SourceTypeFromString("nonsense"))
}

func TestSourceTypeIsVoiced(t *testing.T) {
	assert.False(t, SourceAudioIn.IsVoiced())
	assert.False(t, SourceBusIn.IsVoiced())
	assert.True(t, SourceSaw.IsVoiced())
	assert.True(t, SourceSample.IsVoiced())
}

func TestFilterTypeRoundTrip(t *testing.T) {
	for _, f := range []FilterType{FilterLPF, FilterHPF, FilterBPF} {
		assert.Equal(t, f, FilterTypeFromString(f.String()))
	}
	assert.Equal(t, "tuidaw_hpf", FilterHPF.SynthDefName())
}

func TestEffectTypeRoundTrip(t *testing.T) {
	for _, e := range []EffectType{EffectDelay, EffectReverb, EffectGate} {
		assert.Equal(t, e, EffectTypeFromString(e.String()))
	}
}

func TestScalarValueClamped(t *testing.T) {
	v := ScalarValue{Value: 5, Min: 0, Max: 1}
	assert.Equal(t, 1.0, v.Clamped())
	v.Value = -5
	assert.Equal(t, 0.0, v.Clamped())
}

func TestAutomationTargetName(t *testing.T) {
	assert.Equal(t, "strip_level", AutomationTarget{Kind: TargetInstrumentLevel}.Name())
	assert.Equal(t, "effect_param", AutomationTarget{Kind: TargetEffectParam}.Name())
}

func TestCurveTypeUnknownDefaultsToLinear(t *testing.T) {
	assert.Equal(t, CurveLinear, CurveTypeFromString("bogus"))
}
