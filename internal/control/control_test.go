package control

import (
	"testing"

	"github.com/mohsenil85/tuidaw/internal/bus"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/idalloc"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/routing"
	"github.com/mohsenil85/tuidaw/internal/types"
	"github.com/mohsenil85/tuidaw/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	calls []struct {
		node  int32
		name  string
		value float32
	}
}

func (r *recordingSender) SetParam(nodeID int32, name string, value float32) error {
	r.calls = append(r.calls, struct {
		node  int32
		name  string
		value float32
	}{nodeID, name, value})
	return nil
}

func (r *recordingSender) valueFor(node int32, name string) (float32, bool) {
	for _, c := range r.calls {
		if c.node == node && c.name == name {
			return c.value, true
		}
	}
	return 0, false
}

func setup() (*model.Project, *routing.Graph, *Plane) {
	p := model.NewProject()
	g := routing.NewGraph()
	v := voice.NewManager(bus.New(), idalloc.NewNodeIDs(), func() int64 { return 0 })
	return p, g, New(g, v)
}

func TestUpdateAllStripMixerParamsWhileDisconnected(t *testing.T) {
	p, _, plane := setup()
	err := plane.UpdateAllStripMixerParams(p, false, &recordingSender{})
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
}

func TestScenarioDSoloMutesNonSoloedInstrument(t *testing.T) {
	p, g, plane := setup()
	a := p.AddInstrument(types.SourceSaw)
	b := p.AddInstrument(types.SourceSine)
	b.Solo = true
	g.Instruments[a.ID] = &routing.InstrumentChain{OutputNode: 2000}
	g.Instruments[b.ID] = &routing.InstrumentChain{OutputNode: 2001}

	sender := &recordingSender{}
	require.NoError(t, plane.UpdateAllStripMixerParams(p, true, sender))

	muteA, _ := sender.valueFor(2000, "mute")
	muteB, _ := sender.valueFor(2001, "mute")
	assert.Equal(t, float32(1), muteA)
	assert.Equal(t, float32(0), muteB)

	b.Solo = false
	sender2 := &recordingSender{}
	require.NoError(t, plane.UpdateAllStripMixerParams(p, true, sender2))
	muteA2, _ := sender2.valueFor(2000, "mute")
	muteB2, _ := sender2.valueFor(2001, "mute")
	assert.Equal(t, float32(0), muteA2)
	assert.Equal(t, float32(0), muteB2)
}

func TestApplyAutomationEffectParamCountsOnlyEnabledEffects(t *testing.T) {
	p, g, plane := setup()
	inst := p.AddInstrument(types.SourceSaw)
	inst.Effects = []model.EffectSlot{
		{Type: types.EffectDelay, Enabled: false},
		{Type: types.EffectReverb, Enabled: true, Params: []types.ScalarValue{{Name: "mix"}}},
	}
	g.Instruments[inst.ID] = &routing.InstrumentChain{OutputNode: 3000, EffectNodes: []int32{4000}}

	sender := &recordingSender{}
	target := types.AutomationTarget{Kind: types.TargetEffectParam, EffectIndex: 1, ParamIndex: 0}
	require.NoError(t, plane.ApplyAutomation(inst, target, 0.5, true, sender))
	val, ok := sender.valueFor(4000, "mix")
	assert.True(t, ok)
	assert.Equal(t, float32(0.5), val)
}

func TestApplyAutomationInstrumentLevel(t *testing.T) {
	p, g, plane := setup()
	inst := p.AddInstrument(types.SourceSaw)
	g.Instruments[inst.ID] = &routing.InstrumentChain{OutputNode: 5000}
	sender := &recordingSender{}
	target := types.AutomationTarget{Kind: types.TargetInstrumentLevel}
	require.NoError(t, plane.ApplyAutomation(inst, target, 0.3, true, sender))
	val, ok := sender.valueFor(5000, "level")
	assert.True(t, ok)
	assert.Equal(t, float32(0.3), val)
}

func TestUpdateAllBusMixerParamsSoloMutesNonSoloedBus(t *testing.T) {
	p, g, plane := setup()
	p.Buses[0].Solo = true
	g.Buses[p.Buses[0].ID] = &routing.BusChain{OutputNode: 6000}
	g.Buses[p.Buses[1].ID] = &routing.BusChain{OutputNode: 6001}

	sender := &recordingSender{}
	require.NoError(t, plane.UpdateAllBusMixerParams(p, true, sender))
	muteSoloed, _ := sender.valueFor(6000, "mute")
	muteOther, _ := sender.valueFor(6001, "mute")
	assert.Equal(t, float32(0), muteSoloed)
	assert.Equal(t, float32(1), muteOther)
}

func TestSetBusMixerParamsUnknownBusIsNoop(t *testing.T) {
	_, _, plane := setup()
	sender := &recordingSender{}
	require.NoError(t, plane.SetBusMixerParams(9, 0.5, false, 0, true, sender))
	assert.Empty(t, sender.calls)
}
