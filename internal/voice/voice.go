// Package voice implements the per-instrument polyphonic voice pool:
// spawn/release/steal with a hard cap and scheduled cleanup (§4.4).
package voice

import (
	"fmt"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/mohsenil85/tuidaw/internal/bus"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/idalloc"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/music"
	"github.com/mohsenil85/tuidaw/internal/protocol"
	"github.com/mohsenil85/tuidaw/internal/routing"
	"github.com/mohsenil85/tuidaw/internal/types"
)

// ReleaseSafetyMargin is added to the instrument's release time before the
// voice group's scheduled free (§4.4): "an extra second is a safety margin
// so envelope tails are not clipped."
const ReleaseSafetyMargin = 1 * time.Second

// Sender is the subset of the protocol client the voice manager needs.
type Sender interface {
	SendBundle(messages []*osc.Message, t time.Time) error
	FreeNode(id int32) error
}

// BufferLookup resolves a model-level sample buffer id (sampler_config's
// stable, persisted buffer_id) to the live server bufnum it is currently
// loaded into on this connection (§3.2, §4.4 Scenario F). The model id
// survives reconnects; the bufnum is connection-scoped and re-allocated on
// every load_sample, so the two must never be conflated. Grounded in
// original_source's AudioEngine::get_sc_bufnum / buffer_map.
type BufferLookup interface {
	GetSCBufnum(bufferID int) (int32, bool)
}

// Entry is one live voice-table row (§4.4).
type Entry struct {
	InstrumentID uint32
	Pitch        int
	GroupID      int32
	MidiNodeID   int32
	SourceNodeID int32
	SpawnTime    int64 // monotonic nanoseconds; never wall-clock (§9 Design Notes)
}

// Clock returns a monotonically increasing nanosecond count. Production
// code uses the time elapsed since the engine was created (time.Since, which
// reads the monotonic clock), wrapped so it can be swapped in tests for
// deterministic spawn ordering.
type Clock func() int64

// Manager owns the voice table and the per-voice control-bus / node-id
// counters, all connection-scoped.
type Manager struct {
	table map[uint32][]*Entry
	clock Clock

	Bus     *bus.Allocator
	NodeIDs *idalloc.NodeIDs
}

func NewManager(b *bus.Allocator, n *idalloc.NodeIDs, clock Clock) *Manager {
	return &Manager{table: make(map[uint32][]*Entry), Bus: b, NodeIDs: n, clock: clock}
}

// Count returns the number of live voices for an instrument.
func (m *Manager) Count(instrumentID uint32) int {
	return len(m.table[instrumentID])
}

// Voices returns a snapshot of the live voices for an instrument.
func (m *Manager) Voices(instrumentID uint32) []Entry {
	entries := m.table[instrumentID]
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

// SpawnVoice spawns a new oscillator voice for instrument inst at pitch,
// scheduled at now+offset (§4.4, Scenario B). AudioIn/BusIn instruments are
// not voiced and this is a no-op (§4.4). When polyphonic is false, any
// existing voice on the same instrument is released first (§4.4 mono
// collapse, per the spec's chosen answer to Open Question 1).
func (m *Manager) SpawnVoice(inst *model.Instrument, chain *routing.InstrumentChain, pitch int, velocity float64, offset time.Duration, tuningA4 float64, connected bool, sender Sender, buffers BufferLookup) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	if !inst.Source.IsVoiced() {
		return nil
	}

	if inst.Source == types.SourceSample {
		sc := inst.SamplerConfig
		if sc == nil || sc.BufferID == nil {
			return engineerr.ErrBufferNotLoaded
		}
		if _, ok := buffers.GetSCBufnum(*sc.BufferID); !ok {
			return engineerr.ErrBufferNotLoaded
		}
	}

	if !inst.Polyphonic {
		for _, e := range append([]*Entry{}, m.table[inst.ID]...) {
			if err := m.ReleaseVoice(inst, e.Pitch, 0, connected, sender); err != nil {
				return err
			}
		}
	}

	m.stealIfAtCap(inst.ID, sender)

	groupID := m.NodeIDs.Next()
	midiNodeID := m.NodeIDs.Next()
	sourceNodeID := m.NodeIDs.Next()

	freqOut := m.Bus.GetOrAllocControlBus(bus.InstrumentOwner(inst.ID), voiceRole(midiNodeID, "freq_out"))
	gateOut := m.Bus.GetOrAllocControlBus(bus.InstrumentOwner(inst.ID), voiceRole(midiNodeID, "gate_out"))
	velOut := m.Bus.GetOrAllocControlBus(bus.InstrumentOwner(inst.ID), voiceRole(midiNodeID, "vel_out"))

	freq := music.PitchToFreq(pitch, tuningA4)

	messages := []*osc.Message{
		protocol.CreateGroupMessage(groupID, types.AddToTail, routing.GroupSources),
		protocol.CreateSynthMessage("tuidaw_midi", midiNodeID, types.AddToTail, groupID, map[string]float32{
			"freq": float32(freq), "gate": 1, "vel": float32(velocity),
			"freq_out": float32(freqOut), "gate_out": float32(gateOut), "vel_out": float32(velOut),
		}),
	}

	srcParams := map[string]float32{
		"freq_in": float32(freqOut), "gate_in": float32(gateOut), "vel_in": float32(velOut),
		"out": float32(chain.SourceOutBus),
		"attack": float32(inst.AmpEnvelope.Attack), "decay": float32(inst.AmpEnvelope.Decay),
		"sustain": float32(inst.AmpEnvelope.Sustain), "release": float32(inst.AmpEnvelope.Release),
	}
	defName := inst.Source.SynthDefName()

	if inst.Source == types.SourceSample {
		sc := inst.SamplerConfig
		// Existence and load state were already checked above; resolve the
		// live server bufnum for the model's stable buffer id (§3.2).
		bufnum, _ := buffers.GetSCBufnum(*sc.BufferID)
		start, end := sc.SliceForNote(pitch)
		srcParams["bufnum"] = float32(bufnum)
		srcParams["slice_start"] = float32(start)
		srcParams["slice_end"] = float32(end)
		srcParams["rate"] = 1.0
		srcParams["amp"] = float32(velocity)
		if sc.LoopMode != types.LoopNone {
			srcParams["loop"] = 1
		}
		if sc.PitchTracking {
			srcParams["freq_in"] = float32(freqOut)
		}
	}

	messages = append(messages, protocol.CreateSynthMessage(defName, sourceNodeID, types.AddToTail, groupID, srcParams))

	if err := sender.SendBundle(messages, protocol.TimeFromNow(offset)); err != nil {
		return err
	}

	entry := &Entry{
		InstrumentID: inst.ID, Pitch: pitch, GroupID: groupID,
		MidiNodeID: midiNodeID, SourceNodeID: sourceNodeID, SpawnTime: m.clock(),
	}
	m.table[inst.ID] = append(m.table[inst.ID], entry)
	return nil
}

// stealIfAtCap evicts the oldest voice of instrumentID when the cap
// (model.MaxVoicesPerInstrument) has been reached (§4.4, Property 2/3).
func (m *Manager) stealIfAtCap(instrumentID uint32, sender Sender) {
	entries := m.table[instrumentID]
	if len(entries) < model.MaxVoicesPerInstrument {
		return
	}
	oldestIdx := 0
	for i, e := range entries {
		if e.SpawnTime < entries[oldestIdx].SpawnTime {
			oldestIdx = i
		}
	}
	oldest := entries[oldestIdx]
	_ = sender.FreeNode(oldest.GroupID) // hard cut, no release tail
	m.table[instrumentID] = append(entries[:oldestIdx], entries[oldestIdx+1:]...)
}

// ReleaseVoice locates the matching voice and schedules its release
// (§4.4). The table entry is removed immediately, not when the group is
// actually freed; a subsequent release with no intervening spawn is then a
// no-op (Property 7).
func (m *Manager) ReleaseVoice(inst *model.Instrument, pitch int, offset time.Duration, connected bool, sender Sender) error {
	if !connected {
		return engineerr.ErrNotConnected
	}
	entries := m.table[inst.ID]
	idx := -1
	for i, e := range entries {
		if e.Pitch == pitch {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil
	}
	entry := entries[idx]
	m.table[inst.ID] = append(entries[:idx], entries[idx+1:]...)

	gateOffMsg := osc.NewMessage("/n_set")
	gateOffMsg.Append(entry.MidiNodeID, "gate", float32(0))
	if err := sender.SendBundle([]*osc.Message{gateOffMsg}, protocol.TimeFromNow(offset)); err != nil {
		return err
	}

	freeDelay := offset + time.Duration(inst.AmpEnvelope.Release*float64(time.Second)) + ReleaseSafetyMargin
	freeMsg := osc.NewMessage("/n_free")
	freeMsg.Append(entry.GroupID)
	return sender.SendBundle([]*osc.Message{freeMsg}, protocol.TimeFromNow(freeDelay))
}

// ReleaseAllVoices frees every voice group immediately, with no envelope
// tail (§4.4), and clears the table. Used when the transport stops, and
// required before any routing rebuild (§5 ordering guarantees).
func (m *Manager) ReleaseAllVoices(sender Sender) {
	for instID, entries := range m.table {
		for _, e := range entries {
			_ = sender.FreeNode(e.GroupID)
		}
		delete(m.table, instID)
	}
}

func voiceRole(midiNodeID int32, suffix string) string {
	return fmt.Sprintf("voice_%d_%s", midiNodeID, suffix)
}
