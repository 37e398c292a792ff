// Package engine wires the project model, bus allocator, routing builder,
// voice manager, control plane, protocol client, server lifecycle, and
// persistence layer into the single orchestrator object the dispatch
// façade (internal/dispatch) drives (§2 data flow, §5 concurrency model).
// Every field here is owned by one Engine instance, never shared globally
// (§9 Design Notes).
package engine

import (
	"time"

	"github.com/mohsenil85/tuidaw/internal/bus"
	"github.com/mohsenil85/tuidaw/internal/config"
	"github.com/mohsenil85/tuidaw/internal/control"
	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/idalloc"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/protocol"
	"github.com/mohsenil85/tuidaw/internal/routing"
	"github.com/mohsenil85/tuidaw/internal/server"
	"github.com/mohsenil85/tuidaw/internal/storage"
	"github.com/mohsenil85/tuidaw/internal/types"
	"github.com/mohsenil85/tuidaw/internal/voice"
)

// Engine is the single top-level orchestrator (§2). It is not safe for
// concurrent use from more than one goroutine at a time (§5: "touched only
// from the caller's goroutine").
type Engine struct {
	Project *model.Project

	Bus       *bus.Allocator
	NodeIDs   *idalloc.NodeIDs
	BufferIDs *idalloc.BufferIDs
	Routing   *routing.Builder
	Voices    *voice.Manager
	Control   *control.Plane
	Lifecycle *server.Lifecycle
	Client    *protocol.Client

	connected bool
	stopFeed  func()
	dbPath    string

	// sampleBuffers maps a sampler_config's stable, persisted buffer id to
	// the live server bufnum it is currently loaded into on this
	// connection (§3.2, §4.4 Scenario F). Connection-scoped: cleared on
	// Disconnect, alongside BufferIDs.Reset(). Grounded in original_source's
	// AudioEngine.buffer_map.
	sampleBuffers map[int]int32
	// nextBufferID is NOT connection-scoped: it names a sampler slot
	// stably across reconnects, so it survives Disconnect and is resumed
	// from the loaded project's existing buffer ids (mirrors
	// original_source's persistence.rs "track highest buffer_id" resume
	// logic for DrumSequencer.next_buffer_id).
	nextBufferID int
}

// New creates an engine around a fresh project using the embedded musical
// defaults (§3.3 "Engine defaults configuration").
func New() *Engine {
	p := model.NewProject()
	p.Settings = config.Load()
	return newWithProject(p)
}

func newWithProject(p *model.Project) *Engine {
	b := bus.New()
	nodeIDs := idalloc.NewNodeIDs()
	rb := routing.NewBuilder(b, nodeIDs)
	start := time.Now()
	clock := func() int64 { return int64(time.Since(start)) }
	voices := voice.NewManager(b, nodeIDs, clock)
	e := &Engine{
		Project:       p,
		Bus:           b,
		NodeIDs:       nodeIDs,
		BufferIDs:     idalloc.NewBufferIDs(),
		Routing:       rb,
		Voices:        voices,
		Control:       control.New(rb.Graph, voices),
		Lifecycle:     server.New(),
		sampleBuffers: make(map[int]int32),
		nextBufferID:  1,
	}
	e.resumeBufferIDCounter()
	return e
}

// resumeBufferIDCounter sets nextBufferID above every buffer id already
// present in the project, so a freshly loaded project never hands out a
// buffer id its sampler configs already use (§4.8 load path).
func (e *Engine) resumeBufferIDCounter() {
	max := 0
	for _, inst := range e.Project.Instruments {
		if inst.SamplerConfig != nil && inst.SamplerConfig.BufferID != nil && *inst.SamplerConfig.BufferID > max {
			max = *inst.SamplerConfig.BufferID
		}
	}
	e.nextBufferID = max + 1
}

// Connected reports whether the engine currently holds a live connection to
// the audio server (§4.6).
func (e *Engine) Connected() bool { return e.connected }

// OpenProject loads the project snapshot at path, replacing the in-memory
// project entirely (§4.8). The engine must be disconnected first: loading
// a new project while routing exists would orphan live server nodes.
func (e *Engine) OpenProject(path string) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	p, err := storage.Load(db)
	if err != nil {
		return err
	}
	e.Project = p
	e.dbPath = path
	e.resumeBufferIDCounter()
	return nil
}

// SaveProject writes the current project snapshot to path (§4.8). Passing
// an empty path reuses the path the project was last opened or saved with.
func (e *Engine) SaveProject(path string) error {
	if path == "" {
		path = e.dbPath
	}
	if path == "" {
		var err error
		path, err = storage.DefaultProjectPath()
		if err != nil {
			return err
		}
	}
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Save(db, e.Project); err != nil {
		return err
	}
	e.dbPath = path
	return nil
}

// StartServer spawns scsynth on udpPort (§4.6).
func (e *Engine) StartServer(udpPort int) error {
	return e.Lifecycle.StartServer(udpPort)
}

// StopServer tears down routing and voices (if connected), disconnects, and
// kills the child process (§4.6).
func (e *Engine) StopServer() {
	if e.connected {
		e.Disconnect()
	}
	e.Lifecycle.StopServer()
}

// Connect dials the protocol client, performs the /notify handshake, starts
// the feedback reader, and performs the first routing rebuild (§4.6
// connect, §4.3). On any failure the engine remains disconnected.
func (e *Engine) Connect(host string, port int, feedbackListenAddr string) error {
	client := protocol.Dial(host, port)
	if err := client.Connect(); err != nil {
		return err
	}
	stop, err := client.StartFeedbackReader(feedbackListenAddr)
	if err != nil {
		return err
	}
	e.Client = client
	e.stopFeed = stop
	e.connected = true
	e.Lifecycle.MarkConnected()

	if err := e.Rebuild(); err != nil {
		e.stopFeed()
		e.stopFeed = nil
		e.connected = false
		e.Client = nil
		e.Lifecycle.Disconnect()
		return err
	}
	return nil
}

// Disconnect releases every live voice, tears down routing, frees loaded
// buffers, resets the bus allocator and id counters, stops the feedback
// reader, and returns the lifecycle to Running, or to Stopped when no server
// process is owned (§4.6, §5 ordering guarantees: voices must be released
// before routing is torn down).
func (e *Engine) Disconnect() {
	if !e.connected {
		return
	}
	e.Voices.ReleaseAllVoices(e.Client)
	e.Routing.Graph.Teardown(e.Client)
	for _, bufnum := range e.sampleBuffers {
		_ = e.Client.FreeBuffer(bufnum)
	}
	e.sampleBuffers = make(map[int]int32)
	e.BufferIDs.Reset()
	e.Bus.Reset()
	e.NodeIDs.Reset()
	if e.stopFeed != nil {
		e.stopFeed()
		e.stopFeed = nil
	}
	e.connected = false
	e.Client = nil
	e.Lifecycle.Disconnect()
}

// Rebuild performs the full teardown-and-rebuild of the routing graph
// (§4.3). Live voices are released first since they reference nodes the
// rebuild is about to free (§5 ordering guarantees).
func (e *Engine) Rebuild() error {
	if !e.connected {
		return engineerr.ErrNotConnected
	}
	e.Voices.ReleaseAllVoices(e.Client)
	return e.Routing.Rebuild(e.Project, e.connected, e.Client)
}

// SpawnVoice resolves the instrument and chain, then spawns a polyphonic
// voice at pitch (§4.4, Scenario B).
func (e *Engine) SpawnVoice(instrumentID uint32, pitch int, velocity float64, offset time.Duration) error {
	if !e.connected {
		return engineerr.ErrNotConnected
	}
	inst, ok := e.Project.Instrument(instrumentID)
	if !ok {
		return nil
	}
	chain, ok := e.Routing.Graph.Instruments[instrumentID]
	if !ok {
		return nil
	}
	return e.Voices.SpawnVoice(inst, chain, pitch, velocity, offset, e.Project.Settings.TuningA4, e.connected, e.Client, e)
}

// GetSCBufnum resolves a sampler_config's persisted buffer id to the live
// server bufnum it is currently loaded into, satisfying voice.BufferLookup.
func (e *Engine) GetSCBufnum(bufferID int) (int32, bool) {
	bufnum, ok := e.sampleBuffers[bufferID]
	return bufnum, ok
}

// LoadSample loads path into a freshly allocated server buffer and assigns
// it to inst's sampler config (§3.2, §4.6 "Buffer Management"). If the
// sampler config already has a buffer id (e.g. reloading after a
// reconnect), that id is kept and re-pointed at the new bufnum; otherwise a
// fresh, stable buffer id is assigned. Grounded in original_source's
// AudioEngine::load_sample.
func (e *Engine) LoadSample(instrumentID uint32, path string) (int, error) {
	if !e.connected {
		return 0, engineerr.ErrNotConnected
	}
	inst, ok := e.Project.Instrument(instrumentID)
	if !ok || inst.SamplerConfig == nil {
		return 0, engineerr.ErrBufferNotLoaded
	}
	bufferID := 0
	if inst.SamplerConfig.BufferID != nil {
		bufferID = *inst.SamplerConfig.BufferID
	} else {
		bufferID = e.nextBufferID
		e.nextBufferID++
	}
	bufnum := e.BufferIDs.Next()
	if err := e.Client.LoadBuffer(bufnum, path); err != nil {
		return 0, err
	}
	e.sampleBuffers[bufferID] = bufnum
	inst.SamplerConfig.BufferID = &bufferID
	return bufferID, nil
}

// FreeSample frees the server buffer backing bufferID, if any (§4.6). The
// sampler config's stored buffer id is left untouched so a later LoadSample
// can re-populate the same logical slot.
func (e *Engine) FreeSample(bufferID int) error {
	if !e.connected {
		return engineerr.ErrNotConnected
	}
	bufnum, ok := e.sampleBuffers[bufferID]
	if !ok {
		return nil
	}
	if err := e.Client.FreeBuffer(bufnum); err != nil {
		return err
	}
	delete(e.sampleBuffers, bufferID)
	return nil
}

// ReleaseVoice releases the voice at pitch for instrumentID (§4.4).
func (e *Engine) ReleaseVoice(instrumentID uint32, pitch int, offset time.Duration) error {
	inst, ok := e.Project.Instrument(instrumentID)
	if !ok {
		return nil
	}
	return e.Voices.ReleaseVoice(inst, pitch, offset, e.connected, e.Client)
}

// SetSourceParam applies a one-shot source parameter update (§4.5).
func (e *Engine) SetSourceParam(instrumentID uint32, name string, value float32) error {
	inst, ok := e.Project.Instrument(instrumentID)
	if !ok {
		return nil
	}
	return e.Control.SetSourceParam(inst, name, value, e.connected, e.Client)
}

// SetBusMixerParams applies level/mute/pan to a mixer bus (§4.5).
func (e *Engine) SetBusMixerParams(busID int, level float32, mute bool, pan float32) error {
	return e.Control.SetBusMixerParams(busID, level, mute, pan, e.connected, e.Client)
}

// RefreshStripMixerParams pushes every instrument's level/mute/pan to its
// live output node (§4.5, Scenario D) — used after a master-level or
// solo-set change that does not require a full rebuild.
func (e *Engine) RefreshStripMixerParams() error {
	return e.Control.UpdateAllStripMixerParams(e.Project, e.connected, e.Client)
}

// RefreshBusMixerParams pushes every mixer bus's level/mute/pan to its live
// output node (§4.5) — used after a bus solo toggle changes every bus's
// effective mute.
func (e *Engine) RefreshBusMixerParams() error {
	return e.Control.UpdateAllBusMixerParams(e.Project, e.connected, e.Client)
}

// ApplyAutomation dispatches one automation lane's current value (§4.5).
func (e *Engine) ApplyAutomation(instrumentID uint32, target types.AutomationTarget, value float64) error {
	inst, ok := e.Project.Instrument(instrumentID)
	if !ok {
		return nil
	}
	return e.Control.ApplyAutomation(inst, target, value, e.connected, e.Client)
}

// CompileSynthdefs kicks off an asynchronous sclang compile (§4.6).
func (e *Engine) CompileSynthdefs(scriptPath string) error {
	return e.Lifecycle.CompileSynthdefsAsync(scriptPath)
}

// PollCompileResult drains the compile-result channel non-blockingly (§4.6).
func (e *Engine) PollCompileResult() (server.CompileResult, bool) {
	return e.Lifecycle.PollCompileResult()
}

// LoadSynthdefs loads every compiled definition file in dir (§4.6).
func (e *Engine) LoadSynthdefs(dir string) error {
	if !e.connected {
		return engineerr.ErrNotConnected
	}
	return server.LoadSynthdefs(dir, e.Client)
}

// MeterPeak returns the most recent stereo peak level (§4.1).
func (e *Engine) MeterPeak() (left, right float64) {
	if e.Client == nil {
		return 0, 0
	}
	return e.Client.MeterPeak()
}

// AudioInWaveform returns the most recent waveform snapshot for an
// instrument, or nil if none has arrived yet (§4.1).
func (e *Engine) AudioInWaveform(instrumentID uint32) []float32 {
	if e.Client == nil {
		return nil
	}
	return e.Client.AudioInWaveform(instrumentID)
}
