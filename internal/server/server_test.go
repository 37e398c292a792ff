package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLifecycleStartsStopped(t *testing.T) {
	l := New()
	assert.Equal(t, Stopped, l.State())
}

func TestMarkConnectedTransitionsToConnected(t *testing.T) {
	l := New()
	l.MarkConnected()
	assert.Equal(t, Connected, l.State())
}

func TestDisconnectWithNoProcessGoesToStopped(t *testing.T) {
	l := New()
	l.MarkConnected()
	l.Disconnect()
	assert.Equal(t, Stopped, l.State())
}

func TestStateStringValues(t *testing.T) {
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "error", Error.String())
}

func TestStartServerNoCandidateIsServerSpawnError(t *testing.T) {
	l := New()
	err := l.StartServer(57110)
	assert.ErrorIs(t, err, ErrServerSpawn)
	assert.Equal(t, Error, l.State())
}

func TestCompileSynthdefsAsyncSecondCallWhileRunningIsRejected(t *testing.T) {
	l := New()
	l.compileRunning = true
	err := l.CompileSynthdefsAsync("script.scd")
	assert.ErrorIs(t, err, ErrCompileInProgress)
}

func TestPollCompileResultWithNoCompileStartedIsNotOK(t *testing.T) {
	l := New()
	_, ok := l.PollCompileResult()
	assert.False(t, ok)
}

type recordingSender struct {
	blobs [][]byte
}

func (r *recordingSender) RecvSynthDef(blob []byte) error {
	r.blobs = append(r.blobs, blob)
	return nil
}

func TestLoadSynthdefFileMissingIsServerSpawnError(t *testing.T) {
	sender := &recordingSender{}
	err := LoadSynthdefFile("does-not-exist.scsyndef", sender)
	assert.ErrorIs(t, err, ErrServerSpawn)
	assert.Empty(t, sender.blobs)
}

func TestLoadSynthdefsMissingDirIsServerSpawnError(t *testing.T) {
	sender := &recordingSender{}
	err := LoadSynthdefs("does-not-exist-dir", sender)
	assert.ErrorIs(t, err, ErrServerSpawn)
}
