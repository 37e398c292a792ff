// Package engineerr defines the orchestrator's closed set of error kinds.
package engineerr

import "errors"

// Sentinel errors matching the kinds enumerated in the design's error
// handling section. Callers use errors.Is against these.
var (
	ErrNotConnected    = errors.New("engine: not connected")
	ErrProtocol        = errors.New("engine: protocol send failed")
	ErrServerSpawn     = errors.New("engine: audio server could not be started")
	ErrCompileFailed   = errors.New("engine: synth definition compile failed")
	ErrCompileTimeout  = errors.New("engine: synth definition compile timed out")
	ErrBufferNotLoaded = errors.New("engine: sample buffer not loaded")
	ErrPersistence     = errors.New("engine: persistence operation failed")
)
