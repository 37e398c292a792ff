// Package config holds the engine's musical defaults: the MusicalSettings
// applied when a new project is created, loaded from an embedded default
// and optionally overridden by a user file at
// <config-home>/tuidaw/config.json (SPEC_FULL.md §3.3 "Engine defaults
// configuration"). This is the musical-defaults half of the original
// source's config.rs; the UI half (keyboard layout) is excluded as an
// external-collaborator concern.
package config

import (
	_ "embed"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/mohsenil85/tuidaw/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed default.json
var embeddedDefault []byte

// Defaults mirrors model.MusicalSettings as the decode target; both the
// embedded default and a user override file use this shape.
type Defaults struct {
	BPM          float64 `json:"bpm"`
	Key          int     `json:"key"`
	Scale        string  `json:"scale"`
	TuningA4     float64 `json:"tuning_a4"`
	TimeSigNum   int     `json:"time_sig_num"`
	TimeSigDenom int     `json:"time_sig_denom"`
	Snap         bool    `json:"snap"`
	TicksPerBeat int     `json:"ticks_per_beat"`
}

func (d Defaults) toMusicalSettings() model.MusicalSettings {
	return model.MusicalSettings{
		BPM: d.BPM, Key: d.Key, Scale: d.Scale, TuningA4: d.TuningA4,
		TimeSigNum: d.TimeSigNum, TimeSigDenom: d.TimeSigDenom,
		Snap: d.Snap, TicksPerBeat: d.TicksPerBeat,
	}
}

// ConfigHome resolves <config-home>/tuidaw using HOME (§6 process
// environment: "HOME ... No other environment variables are consulted").
func ConfigHome() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(home, ".config", "tuidaw"), nil
}

// UserConfigPath returns <config-home>/tuidaw/config.json.
func UserConfigPath() (string, error) {
	home, err := ConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.json"), nil
}

// Load returns the effective musical settings: the embedded default,
// overridden field-for-field by a user file if one exists and parses.
// A missing or unparsable user file is not an error; the embedded default
// (or as much of it as was already applied) is used instead.
func Load() model.MusicalSettings {
	d := Defaults{}
	_ = json.Unmarshal(embeddedDefault, &d)

	path, err := UserConfigPath()
	if err == nil {
		if raw, readErr := os.ReadFile(path); readErr == nil {
			_ = json.Unmarshal(raw, &d)
		}
	}
	return d.toMusicalSettings()
}
