package routing

import (
	"testing"

	"github.com/mohsenil85/tuidaw/internal/bus"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/idalloc"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind   string
	def    string
	node   int32
	params map[string]float32
}

type recordingSender struct {
	events []event
}

func (r *recordingSender) CreateGroup(id int32, action types.AddAction, target int32) error {
	r.events = append(r.events, event{kind: "group", node: id})
	return nil
}

func (r *recordingSender) CreateSynthInGroup(defName string, nodeID int32, group int32, params map[string]float32) error {
	r.events = append(r.events, event{kind: "synth", def: defName, node: nodeID, params: params})
	return nil
}

func (r *recordingSender) CreateSynth(defName string, nodeID int32, action types.AddAction, target int32, params map[string]float32) error {
	r.events = append(r.events, event{kind: "synth", def: defName, node: nodeID})
	return nil
}

func (r *recordingSender) FreeNode(id int32) error {
	r.events = append(r.events, event{kind: "free", node: id})
	return nil
}

func newBuilder() *Builder {
	return NewBuilder(bus.New(), idalloc.NewNodeIDs())
}

func TestRebuildWhileDisconnectedReturnsNotConnected(t *testing.T) {
	rb := newBuilder()
	p := model.NewProject()
	sender := &recordingSender{}
	err := rb.Rebuild(p, false, sender)
	assert.ErrorIs(t, err, engineerr.ErrNotConnected)
	assert.Empty(t, sender.events)
}

func TestScenarioAEmptyRebuildCreatesGroupsBusesAndMeter(t *testing.T) {
	rb := newBuilder()
	p := model.NewProject()
	sender := &recordingSender{}
	require.NoError(t, rb.Rebuild(p, true, sender))

	groups := 0
	synths := 0
	for _, e := range sender.events {
		if e.kind == "group" {
			groups++
		}
		if e.kind == "synth" {
			synths++
		}
	}
	assert.Equal(t, 3, groups)
	// 8 bus-output nodes + 1 meter node, no instruments.
	assert.Equal(t, model.NumBuses+1, synths)
}

func TestScenarioBOneSawInstrumentNoPersistentSourceNode(t *testing.T) {
	rb := newBuilder()
	p := model.NewProject()
	p.AddInstrument(types.SourceSaw)
	sender := &recordingSender{}
	require.NoError(t, rb.Rebuild(p, true, sender))

	chain := rb.Graph.Instruments[0]
	require.NotNil(t, chain)
	assert.False(t, chain.HasPersistent)

	synthDefs := map[string]int{}
	for _, e := range sender.events {
		if e.kind == "synth" {
			synthDefs[e.def]++
		}
	}
	assert.Equal(t, 0, synthDefs["tuidaw_saw"]) // oscillator source is voiced, not built here
	assert.Equal(t, 1, synthDefs["tuidaw_output"])
}

func TestRebuildDeterminism(t *testing.T) {
	p := model.NewProject()
	p.AddInstrument(types.SourceSaw)
	inst2 := p.AddInstrument(types.SourceSample)
	inst2.Filter = &model.Filter{Type: types.FilterLPF}

	rb1 := newBuilder()
	s1 := &recordingSender{}
	require.NoError(t, rb1.Rebuild(p, true, s1))

	rb2 := newBuilder()
	s2 := &recordingSender{}
	require.NoError(t, rb2.Rebuild(p, true, s2))

	require.Equal(t, len(s1.events), len(s2.events))
	for i := range s1.events {
		assert.Equal(t, s1.events[i].kind, s2.events[i].kind)
		assert.Equal(t, s1.events[i].def, s2.events[i].def)
	}
	for id, c1 := range rb1.Graph.Instruments {
		c2 := rb2.Graph.Instruments[id]
		assert.Equal(t, c1.SourceOutBus, c2.SourceOutBus)
	}
}

func TestBusNamespaceSeparation(t *testing.T) {
	rb := newBuilder()
	p := model.NewProject()
	inst := p.AddInstrument(types.SourceSaw)
	inst.LFO.Enabled = true
	sender := &recordingSender{}
	require.NoError(t, rb.Rebuild(p, true, sender))

	chain := rb.Graph.Instruments[inst.ID]
	assert.GreaterOrEqual(t, chain.SourceOutBus, bus.FirstAudioBus)
	assert.True(t, chain.HasLFO)
	assert.NotEqual(t, chain.SourceOutBus, chain.LFOOutBus)
}

func TestSoloMutesNonSoloedInstrument(t *testing.T) {
	rb := newBuilder()
	p := model.NewProject()
	a := p.AddInstrument(types.SourceSaw)
	b := p.AddInstrument(types.SourceSine)
	b.Solo = true
	sender := &recordingSender{}
	require.NoError(t, rb.Rebuild(p, true, sender))

	chainA := rb.Graph.Instruments[a.ID]
	chainB := rb.Graph.Instruments[b.ID]
	assert.NotEqual(t, chainA.OutputNode, chainB.OutputNode)

	muteOf := func(node int32) float32 {
		for _, e := range sender.events {
			if e.kind == "synth" && e.node == node {
				return e.params["mute"]
			}
		}
		return -1
	}
	assert.Equal(t, float32(1), muteOf(chainA.OutputNode))
	assert.Equal(t, float32(0), muteOf(chainB.OutputNode))
}

func TestRebuildIsIdempotentInGraphShape(t *testing.T) {
	rb := newBuilder()
	p := model.NewProject()
	p.AddInstrument(types.SourceSaw)
	sender := &recordingSender{}
	require.NoError(t, rb.Rebuild(p, true, sender))
	shape1 := len(rb.Graph.Instruments)
	require.NoError(t, rb.Rebuild(p, true, sender))
	shape2 := len(rb.Graph.Instruments)
	assert.Equal(t, shape1, shape2)
}
