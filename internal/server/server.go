// Package server implements the audio server lifecycle state machine
// (§4.6): process supervision, the connect/disconnect handshake, and
// synth-definition compilation and loading. Grounded in the teacher's
// internal/supercollider/supercollider.go process-spawn and candidate-path
// search pattern, redirected at scsynth/sclang instead of sclang-as-engine.
package server

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/mohsenil85/tuidaw/internal/engineerr"
)

// ErrCompileInProgress is returned by CompileSynthdefsAsync when a compile
// is already running; only one compile may be in flight (§4.6).
var ErrCompileInProgress = fmt.Errorf("server: a synthdef compile is already in progress")

// Error kind aliases so callers can errors.Is against the closed set in
// internal/engineerr without this package redeclaring its own sentinels.
var (
	ErrServerSpawn    = engineerr.ErrServerSpawn
	ErrCompileFailed  = engineerr.ErrCompileFailed
	ErrCompileTimeout = engineerr.ErrCompileTimeout
)

// State is a position in the lifecycle state machine (§4.6):
// Stopped -> Starting -> Running -> Connected -> (Error).
type State int

const (
	Stopped State = iota
	Starting
	Running
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "stopped"
	}
}

// ReadyDelay is the fixed sleep start_server waits after spawning scsynth to
// let it open its port (§4.6: "simple delay, no readiness handshake defined").
const ReadyDelay = 500 * time.Millisecond

// CompileTimeout bounds the synth-definition compiler (§5 Cancellation).
const CompileTimeout = 30 * time.Second

// CompileResult is posted through the single-slot compile channel.
type CompileResult struct {
	Err error
}

// Lifecycle owns the scsynth child process and the at-most-one compile
// worker. It holds no network client; connection is a separate concern
// wired by the caller (the engine) via protocol.Client.
type Lifecycle struct {
	mu    sync.Mutex
	state State
	cmd   *exec.Cmd

	compileMu      sync.Mutex
	compileRunning bool
	compileResult  chan CompileResult
}

func New() *Lifecycle {
	return &Lifecycle{state: Stopped}
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// ScsynthCandidatePaths returns the ordered list of places start_server
// looks for the scsynth binary: PATH first, then platform-standard install
// locations (§4.6, §6 process environment).
func ScsynthCandidatePaths() []string {
	var paths []string
	if p, err := exec.LookPath("scsynth"); err == nil {
		paths = append(paths, p)
	}
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			"/Applications/SuperCollider.app/Contents/Resources/scsynth",
		)
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, "Applications", "SuperCollider.app", "Contents", "Resources", "scsynth"))
		}
	case "linux":
		paths = append(paths, "/usr/bin/scsynth", "/usr/local/bin/scsynth", "/opt/supercollider/bin/scsynth")
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".local", "bin", "scsynth"))
		}
	case "windows":
		paths = append(paths,
			`C:\Program Files\SuperCollider\scsynth.exe`,
			`C:\Program Files (x86)\SuperCollider\scsynth.exe`,
		)
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			paths = append(paths, filepath.Join(localAppData, "SuperCollider", "scsynth.exe"))
		}
	}
	return paths
}

func firstExisting(paths []string) (string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no candidate executable found", ErrServerSpawn)
}

// StartServer spawns the scsynth binary on udpPort (§4.6 start_server).
// On success the state becomes Running; on failure it becomes Error and
// ErrServerSpawn is returned. The 500ms ready delay is a fixed sleep, no
// handshake.
func (l *Lifecycle) StartServer(udpPort int) error {
	path, err := firstExisting(ScsynthCandidatePaths())
	if err != nil {
		l.setState(Error)
		return err
	}

	l.setState(Starting)
	cmd := exec.Command(path, "-u", fmt.Sprintf("%d", udpPort))
	cmd.Stdout = log.Writer()
	cmd.Stderr = log.Writer()
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		l.setState(Error)
		return fmt.Errorf("%w: %v", ErrServerSpawn, err)
	}

	l.mu.Lock()
	l.cmd = cmd
	l.mu.Unlock()

	time.Sleep(ReadyDelay)
	l.setState(Running)
	log.Printf("server: scsynth started, pid=%d, port=%d", cmd.Process.Pid, udpPort)
	return nil
}

// MarkConnected transitions Running -> Connected once the protocol client's
// handshake (§4.6 connect: /notify 1) has succeeded. The dial and /notify
// itself are the engine's responsibility (internal/protocol), not this
// package's — Lifecycle only tracks the resulting state.
func (l *Lifecycle) MarkConnected() {
	l.setState(Connected)
}

// Disconnect returns to Running (process still alive) per §4.6. Freeing
// server-owned nodes/buffers/voices and resetting the bus allocator is the
// engine's responsibility since this package has no server-entity state.
func (l *Lifecycle) Disconnect() {
	l.mu.Lock()
	alive := l.cmd != nil && l.cmd.Process != nil
	l.mu.Unlock()
	if alive {
		l.setState(Running)
	} else {
		l.setState(Stopped)
	}
}

// StopServer disconnects, then kills and reaps the child process (§4.6).
func (l *Lifecycle) StopServer() {
	l.Disconnect()
	l.mu.Lock()
	cmd := l.cmd
	l.cmd = nil
	l.mu.Unlock()
	if cmd != nil {
		killProcessGroup(cmd)
		_ = cmd.Wait()
	}
	l.setState(Stopped)
}

// CompileSynthdefsAsync spawns a background task invoking sclang against
// scriptPath, bounded by CompileTimeout, and posts its result to a
// single-slot channel (§4.6, §5). Only one compile may be in flight;
// calling again while one is running returns ErrCompileInProgress.
func (l *Lifecycle) CompileSynthdefsAsync(scriptPath string) error {
	l.compileMu.Lock()
	if l.compileRunning {
		l.compileMu.Unlock()
		return ErrCompileInProgress
	}
	l.compileRunning = true
	l.compileResult = make(chan CompileResult, 1)
	l.compileMu.Unlock()

	go func() {
		defer func() {
			l.compileMu.Lock()
			l.compileRunning = false
			l.compileMu.Unlock()
		}()

		sclangPath, err := findSclangPath()
		if err != nil {
			l.compileResult <- CompileResult{Err: fmt.Errorf("%w: %v", ErrCompileFailed, err)}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), CompileTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, sclangPath, scriptPath)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		runErr := cmd.Run()

		if ctx.Err() == context.DeadlineExceeded {
			l.compileResult <- CompileResult{Err: ErrCompileTimeout}
			return
		}
		if runErr != nil {
			l.compileResult <- CompileResult{Err: fmt.Errorf("%w: %s", ErrCompileFailed, stderr.String())}
			return
		}
		l.compileResult <- CompileResult{Err: nil}
	}()
	return nil
}

// PollCompileResult drains the single-slot compile channel non-blockingly
// (§4.6). Returns ok=false if no result is ready yet.
func (l *Lifecycle) PollCompileResult() (result CompileResult, ok bool) {
	l.compileMu.Lock()
	ch := l.compileResult
	l.compileMu.Unlock()
	if ch == nil {
		return CompileResult{}, false
	}
	select {
	case r := <-ch:
		return r, true
	default:
		return CompileResult{}, false
	}
}

func findSclangPath() (string, error) {
	if path, err := exec.LookPath("sclang"); err == nil {
		return path, nil
	}
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"/Applications/SuperCollider.app/Contents/MacOS/sclang"}
	case "linux":
		candidates = []string{"/usr/bin/sclang", "/usr/local/bin/sclang", "/opt/supercollider/bin/sclang"}
	case "windows":
		candidates = []string{`C:\Program Files\SuperCollider\sclang.exe`}
	}
	return firstExisting(candidates)
}

// LoadSynthdefs reads every *.scsyndef in dir and sends each via the given
// sender's RecvSynthDef (§4.6 load_synthdefs).
func LoadSynthdefs(dir string, sender RecvSynthDefSender) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerSpawn, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".scsyndef" {
			continue
		}
		if err := LoadSynthdefFile(filepath.Join(dir, e.Name()), sender); err != nil {
			return err
		}
	}
	return nil
}

// LoadSynthdefFile sends a single compiled definition file via /d_recv
// (§4.6 load_synthdef_file).
func LoadSynthdefFile(path string, sender RecvSynthDefSender) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerSpawn, err)
	}
	return sender.RecvSynthDef(blob)
}

// RecvSynthDefSender is the subset of the protocol client needed to load
// compiled synth definitions.
type RecvSynthDefSender interface {
	RecvSynthDef(blob []byte) error
}
