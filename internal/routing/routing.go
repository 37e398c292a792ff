// Package routing implements the routing builder (§4.3): it turns the whole
// project model into a concrete node/bus graph on the server by full
// teardown-and-rebuild.
package routing

import (
	"fmt"

	"github.com/mohsenil85/tuidaw/internal/bus"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/idalloc"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/types"
)

// Root group ids are fixed per §3.2.
const (
	GroupSources    int32 = 100
	GroupProcessing int32 = 200
	GroupOutput     int32 = 300
)

// Sender is the subset of the protocol client the routing builder needs.
// Satisfied by *protocol.Client; tests use a recording fake.
type Sender interface {
	CreateGroup(id int32, action types.AddAction, target int32) error
	CreateSynthInGroup(defName string, nodeID int32, group int32, params map[string]float32) error
	CreateSynth(defName string, nodeID int32, action types.AddAction, target int32, params map[string]float32) error
	FreeNode(id int32) error
}

// InstrumentChain records the node/bus ids the builder created for one
// instrument, consulted by the control plane and voice manager.
type InstrumentChain struct {
	SourceOutBus  int
	LFOOutBus     int
	HasLFO        bool
	LFONode       int32 // valid iff HasLFO
	FilterOutBus  int
	HasFilter     bool
	PersistentSrc int32 // valid iff the source kind is persistent (AudioIn/BusIn)
	HasPersistent bool
	FilterNode    int32
	EffectNodes   []int32
	OutputNode    int32
}

// BusChain records a mixer bus's output node and audio bus.
type BusChain struct {
	OutBus     int
	OutputNode int32
}

// Graph is the live routing state: every node id the builder created, kept
// so the next rebuild's teardown step can free them (§4.3 step 1).
type Graph struct {
	groupsCreated bool

	Instruments map[uint32]*InstrumentChain
	Buses       map[int]*BusChain
	SendNodes   []int32
	MeterNode   int32
	hasMeter    bool
}

func NewGraph() *Graph {
	return &Graph{Instruments: make(map[uint32]*InstrumentChain), Buses: make(map[int]*BusChain)}
}

// Teardown frees every node this graph created and clears its maps. It does
// not touch voice groups; callers must call the voice manager's
// ReleaseAllVoices before rebuilding (§5 ordering guarantees).
func (g *Graph) Teardown(sender Sender) {
	for _, chain := range g.Instruments {
		if chain.HasPersistent {
			_ = sender.FreeNode(chain.PersistentSrc)
		}
		if chain.HasLFO {
			_ = sender.FreeNode(chain.LFONode)
		}
		if chain.HasFilter {
			_ = sender.FreeNode(chain.FilterNode)
		}
		for _, n := range chain.EffectNodes {
			_ = sender.FreeNode(n)
		}
		_ = sender.FreeNode(chain.OutputNode)
	}
	for _, bc := range g.Buses {
		_ = sender.FreeNode(bc.OutputNode)
	}
	for _, n := range g.SendNodes {
		_ = sender.FreeNode(n)
	}
	if g.hasMeter {
		_ = sender.FreeNode(g.MeterNode)
	}
	g.groupsCreated = false
	g.Instruments = make(map[uint32]*InstrumentChain)
	g.Buses = make(map[int]*BusChain)
	g.SendNodes = nil
	g.hasMeter = false
}

// Builder owns the bus allocator and node-id counter used across rebuilds.
// Both are connection-scoped (§9 Design Notes).
type Builder struct {
	Bus     *bus.Allocator
	NodeIDs *idalloc.NodeIDs
	Graph   *Graph
}

func NewBuilder(b *bus.Allocator, n *idalloc.NodeIDs) *Builder {
	return &Builder{Bus: b, NodeIDs: n, Graph: NewGraph()}
}

// Rebuild performs the full teardown-and-rebuild sequence of §4.3. Returns
// engineerr.ErrNotConnected (leaving the engine in a clean "no routing"
// state) when connected is false, per Scenario A.
func (rb *Builder) Rebuild(p *model.Project, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}

	// Teardown clears the groups flag; keep it across a rebuild on the same
	// connection so the root groups are not created twice.
	groupsCreated := rb.Graph.groupsCreated
	rb.Graph.Teardown(sender)
	rb.Graph.groupsCreated = groupsCreated
	rb.Bus.Reset()

	if err := rb.ensureGroups(sender); err != nil {
		return err
	}

	anySoloedInst := p.AnyInstrumentSoloed()
	anySoloedBus := p.AnyBusSoloed()

	for _, inst := range p.Instruments {
		if err := rb.buildInstrumentChain(p, inst, anySoloedInst, sender); err != nil {
			return err
		}
	}

	for i := range p.Buses {
		b := &p.Buses[i]
		if err := rb.buildBusChannel(b, anySoloedBus, sender); err != nil {
			return err
		}
	}

	if err := rb.buildSends(p, sender); err != nil {
		return err
	}

	return rb.buildMeter(sender)
}

// ensureGroups idempotently creates the three root groups (§4.3 step 2).
func (rb *Builder) ensureGroups(sender Sender) error {
	if rb.Graph.groupsCreated {
		return nil
	}
	for _, id := range []int32{GroupSources, GroupProcessing, GroupOutput} {
		if err := sender.CreateGroup(id, types.AddToTail, 0); err != nil {
			return fmt.Errorf("ensure groups: %w", err)
		}
	}
	rb.Graph.groupsCreated = true
	return nil
}

func (rb *Builder) buildInstrumentChain(p *model.Project, inst *model.Instrument, anySoloed bool, sender Sender) error {
	owner := bus.InstrumentOwner(inst.ID)
	chain := &InstrumentChain{}

	chain.SourceOutBus = rb.Bus.GetOrAllocAudioBus(owner, "source_out")

	if !inst.Source.IsVoiced() {
		nodeID := rb.NodeIDs.Next()
		if err := sender.CreateSynthInGroup(inst.Source.SynthDefName(), nodeID, GroupSources,
			sourceParamMap(inst, chain.SourceOutBus)); err != nil {
			return fmt.Errorf("instrument %d source node: %w", inst.ID, err)
		}
		chain.PersistentSrc = nodeID
		chain.HasPersistent = true
	}

	stageOutBus := chain.SourceOutBus

	if inst.LFO.Enabled {
		chain.LFOOutBus = rb.Bus.GetOrAllocControlBus(owner, "lfo_out")
		chain.HasLFO = true
		lfoNode := rb.NodeIDs.Next()
		if err := sender.CreateSynthInGroup("tuidaw_lfo", lfoNode, GroupSources, map[string]float32{
			"rate": float32(inst.LFO.RateHz), "depth": float32(inst.LFO.Depth), "out": float32(chain.LFOOutBus),
		}); err != nil {
			return fmt.Errorf("instrument %d lfo node: %w", inst.ID, err)
		}
		chain.LFONode = lfoNode
	}

	if inst.Filter != nil {
		chain.HasFilter = true
		chain.FilterOutBus = rb.Bus.GetOrAllocAudioBus(owner, "filter_out")
		cutoffModIn := float32(-1)
		if chain.HasLFO && inst.LFO.Target == types.LFOTargetFilterCutoff {
			cutoffModIn = float32(chain.LFOOutBus)
		}
		chain.FilterNode = rb.NodeIDs.Next()
		if err := sender.CreateSynthInGroup(inst.Filter.Type.SynthDefName(), chain.FilterNode, GroupProcessing, map[string]float32{
			"in": float32(stageOutBus), "out": float32(chain.FilterOutBus),
			"cutoff": float32(inst.Filter.Cutoff.Clamped()), "resonance": float32(inst.Filter.Resonance.Clamped()),
			"cutoff_mod_in": cutoffModIn,
		}); err != nil {
			return fmt.Errorf("instrument %d filter node: %w", inst.ID, err)
		}
		stageOutBus = chain.FilterOutBus
	}

	for i, eff := range inst.Effects {
		if !eff.Enabled {
			continue
		}
		fxOutBus := rb.Bus.GetOrAllocAudioBus(owner, fmt.Sprintf("fx_%d_out", i))
		params := map[string]float32{"in": float32(stageOutBus), "out": float32(fxOutBus)}
		for _, p := range eff.Params {
			params[p.Name] = float32(p.Clamped())
		}
		node := rb.NodeIDs.Next()
		if err := sender.CreateSynthInGroup(eff.Type.SynthDefName(), node, GroupProcessing, params); err != nil {
			return fmt.Errorf("instrument %d effect %d: %w", inst.ID, i, err)
		}
		chain.EffectNodes = append(chain.EffectNodes, node)
		stageOutBus = fxOutBus
	}

	effectiveMute := model.EffectiveInstrumentMute(inst, anySoloed)
	chain.OutputNode = rb.NodeIDs.Next()
	muteVal := float32(0)
	if effectiveMute {
		muteVal = 1
	}
	if err := sender.CreateSynthInGroup("tuidaw_output", chain.OutputNode, GroupOutput, map[string]float32{
		"in": float32(stageOutBus), "level": float32(inst.Level * p.MasterLevel),
		"pan": float32(inst.Pan), "mute": muteVal,
	}); err != nil {
		return fmt.Errorf("instrument %d output node: %w", inst.ID, err)
	}

	rb.Graph.Instruments[inst.ID] = chain
	return nil
}

func sourceParamMap(inst *model.Instrument, outBus int) map[string]float32 {
	params := map[string]float32{"out": float32(outBus)}
	for _, p := range inst.SourceParams {
		params[p.Name] = float32(p.Clamped())
	}
	return params
}

func (rb *Builder) buildBusChannel(b *model.Bus, anySoloed bool, sender Sender) error {
	owner := bus.BusOwner(b.ID)
	outBus := rb.Bus.GetOrAllocAudioBus(owner, "bus_out")
	node := rb.NodeIDs.Next()
	muteVal := float32(0)
	if model.EffectiveBusMute(b, anySoloed) {
		muteVal = 1
	}
	if err := sender.CreateSynthInGroup("tuidaw_bus_output", node, GroupOutput, map[string]float32{
		"in": float32(outBus), "level": float32(b.Level), "pan": float32(b.Pan), "mute": muteVal,
	}); err != nil {
		return fmt.Errorf("bus %d output node: %w", b.ID, err)
	}
	rb.Graph.Buses[b.ID] = &BusChain{OutBus: outBus, OutputNode: node}
	return nil
}

func (rb *Builder) buildSends(p *model.Project, sender Sender) error {
	for _, inst := range p.Instruments {
		chain, ok := rb.Graph.Instruments[inst.ID]
		if !ok {
			continue
		}
		for _, send := range inst.Sends {
			if !send.Enabled || send.Level <= 0 {
				continue
			}
			target, ok := rb.Graph.Buses[send.BusID]
			if !ok {
				continue
			}
			node := rb.NodeIDs.Next()
			if err := sender.CreateSynthInGroup("tuidaw_send", node, GroupOutput, map[string]float32{
				"in": float32(chain.SourceOutBus), "out": float32(target.OutBus), "level": float32(send.Level),
			}); err != nil {
				return fmt.Errorf("instrument %d send to bus %d: %w", inst.ID, send.BusID, err)
			}
			rb.Graph.SendNodes = append(rb.Graph.SendNodes, node)
		}
	}
	return nil
}

// buildMeter adds the meter tap after the OUTPUT group rather than inside
// it (§4.3 step 6, §6: "uses add-to-tail and add-after"), so it taps the
// group's fully mixed output instead of racing its children.
func (rb *Builder) buildMeter(sender Sender) error {
	node := rb.NodeIDs.Next()
	if err := sender.CreateSynth("tuidaw_meter", node, types.AddAfter, GroupOutput, nil); err != nil {
		return fmt.Errorf("meter node: %w", err)
	}
	rb.Graph.MeterNode = node
	rb.Graph.hasMeter = true
	return nil
}
