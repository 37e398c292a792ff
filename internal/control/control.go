// Package control implements the control plane (§4.5): real-time parameter
// updates that bypass the routing builder and set individual node
// parameters via one-shot messages. All operations are no-ops when
// disconnected and never create or free nodes.
package control

import (
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/routing"
	"github.com/mohsenil85/tuidaw/internal/types"
	"github.com/mohsenil85/tuidaw/internal/voice"
)

// Sender is the subset of the protocol client the control plane needs.
type Sender interface {
	SetParam(nodeID int32, name string, value float32) error
}

// Plane applies parameter updates against a live routing.Graph and voice
// table. It holds no state of its own beyond references to the graph and
// the voice manager.
type Plane struct {
	Graph  *routing.Graph
	Voices *voice.Manager
}

func New(g *routing.Graph, v *voice.Manager) *Plane {
	return &Plane{Graph: g, Voices: v}
}

// SetSourceParam sets a source parameter on the persistent source node (if
// any) and on every live voice's source node (§4.5).
func (p *Plane) SetSourceParam(inst *model.Instrument, name string, value float32, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	chain, ok := p.Graph.Instruments[inst.ID]
	if ok && chain.HasPersistent {
		if err := sender.SetParam(chain.PersistentSrc, name, value); err != nil {
			return err
		}
	}
	for _, v := range p.Voices.Voices(inst.ID) {
		if err := sender.SetParam(v.SourceNodeID, name, value); err != nil {
			return err
		}
	}
	return nil
}

// SetBusMixerParams sets level/mute/pan on a mixer bus's output node.
func (p *Plane) SetBusMixerParams(busID int, level float32, mute bool, pan float32, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	bc, ok := p.Graph.Buses[busID]
	if !ok {
		return nil
	}
	muteVal := float32(0)
	if mute {
		muteVal = 1
	}
	if err := sender.SetParam(bc.OutputNode, "level", level); err != nil {
		return err
	}
	if err := sender.SetParam(bc.OutputNode, "mute", muteVal); err != nil {
		return err
	}
	return sender.SetParam(bc.OutputNode, "pan", pan)
}

// UpdateAllStripMixerParams iterates instruments, setting level, mute, and
// pan on each output node; level is multiplied by the current master
// level (§4.5, Scenario D).
func (p *Plane) UpdateAllStripMixerParams(proj *model.Project, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	anySoloed := proj.AnyInstrumentSoloed()
	for _, inst := range proj.Instruments {
		chain, ok := p.Graph.Instruments[inst.ID]
		if !ok {
			continue
		}
		muteVal := float32(0)
		if model.EffectiveInstrumentMute(inst, anySoloed) {
			muteVal = 1
		}
		if err := sender.SetParam(chain.OutputNode, "level", float32(inst.Level*proj.MasterLevel)); err != nil {
			return err
		}
		if err := sender.SetParam(chain.OutputNode, "mute", muteVal); err != nil {
			return err
		}
		if err := sender.SetParam(chain.OutputNode, "pan", float32(inst.Pan)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAllBusMixerParams iterates mixer buses, setting level, mute, and
// pan on each output node (§4.5, symmetric with UpdateAllStripMixerParams):
// used after a bus solo toggle changes every bus's effective mute.
func (p *Plane) UpdateAllBusMixerParams(proj *model.Project, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	anySoloed := proj.AnyBusSoloed()
	for i := range proj.Buses {
		b := &proj.Buses[i]
		bc, ok := p.Graph.Buses[b.ID]
		if !ok {
			continue
		}
		muteVal := float32(0)
		if model.EffectiveBusMute(b, anySoloed) {
			muteVal = 1
		}
		if err := sender.SetParam(bc.OutputNode, "level", float32(b.Level)); err != nil {
			return err
		}
		if err := sender.SetParam(bc.OutputNode, "mute", muteVal); err != nil {
			return err
		}
		if err := sender.SetParam(bc.OutputNode, "pan", float32(b.Pan)); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAutomation dispatches an automation lane's current value onto the
// right node parameter (§4.5). For TargetEffectParam, target.EffectIndex
// refers to the model's effect-list index, but the live node list only
// contains enabled effects, so enabled effects are counted up to that
// index to find the corresponding node.
func (p *Plane) ApplyAutomation(inst *model.Instrument, target types.AutomationTarget, value float64, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	chain, ok := p.Graph.Instruments[inst.ID]
	if !ok {
		return nil
	}
	switch target.Kind {
	case types.TargetInstrumentLevel:
		return sender.SetParam(chain.OutputNode, "level", float32(value))
	case types.TargetInstrumentPan:
		return sender.SetParam(chain.OutputNode, "pan", float32(value))
	case types.TargetFilterCutoff:
		if !chain.HasFilter {
			return nil
		}
		return sender.SetParam(chain.FilterNode, "cutoff", float32(value))
	case types.TargetFilterResonance:
		if !chain.HasFilter {
			return nil
		}
		return sender.SetParam(chain.FilterNode, "resonance", float32(value))
	case types.TargetEffectParam:
		enabledIdx := 0
		for i, eff := range inst.Effects {
			if !eff.Enabled {
				continue
			}
			if i == target.EffectIndex {
				if enabledIdx >= len(chain.EffectNodes) {
					return nil
				}
				paramName := "param"
				if target.ParamIndex < len(eff.Params) {
					paramName = eff.Params[target.ParamIndex].Name
				}
				return sender.SetParam(chain.EffectNodes[enabledIdx], paramName, float32(value))
			}
			enabledIdx++
		}
		return nil
	case types.TargetSamplerRate:
		for _, v := range p.Voices.Voices(inst.ID) {
			if err := sender.SetParam(v.SourceNodeID, "rate", float32(value)); err != nil {
				return err
			}
		}
		return nil
	case types.TargetSamplerAmp:
		for _, v := range p.Voices.Voices(inst.ID) {
			if err := sender.SetParam(v.SourceNodeID, "amp", float32(value)); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
