// Package storage implements the persistence layer (§4.8): a full project
// snapshot stored in a relational SQLite database file. Saves clear and
// rewrite every table inside a single transaction; loads are straightforward
// selects. Grounded in the teacher's internal/storage/storage.go for the
// package's role (the model's sole disk I/O boundary) and in
// original_source/src/state/persistence.rs for the exact schema and the
// clear-then-rewrite-in-one-transaction save semantics (rusqlite there,
// modernc.org/sqlite here — see DESIGN.md for why no pack repo offers an
// alternative relational-storage library).
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/mohsenil85/tuidaw/internal/engineerr"
	"github.com/mohsenil85/tuidaw/internal/model"
	"github.com/mohsenil85/tuidaw/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultProjectPath returns <config-home>/tuidaw/default.sqlite (§6).
func DefaultProjectPath() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %v", engineerr.ErrPersistence, err)
		}
	}
	return filepath.Join(home, ".config", "tuidaw", "default.sqlite"), nil
}

// Open opens (creating if necessary) a SQLite database at path and applies
// the schema. Safe to call repeatedly; table creation is idempotent.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", engineerr.ErrPersistence, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engineerr.ErrPersistence, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", engineerr.ErrPersistence, err)
	}
	return db, nil
}

// Save writes the whole project snapshot, clearing and rewriting every
// table inside a single transaction (§4.8): on failure the previous
// snapshot survives untouched (§7 PersistenceError).
func Save(db *sql.DB, p *model.Project) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", engineerr.ErrPersistence, err)
	}
	defer tx.Rollback()

	for _, table := range allTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("%w: clear %s: %v", engineerr.ErrPersistence, table, err)
		}
	}

	if err := saveAll(tx, p); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", engineerr.ErrPersistence, err)
	}
	return nil
}

func saveAll(tx *sql.Tx, p *model.Project) error {
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion); err != nil {
		return wrapErr("schema_version", err)
	}

	s := p.Settings
	if _, err := tx.Exec(`INSERT INTO musical_settings
		(id, bpm, key_pitch, scale, tuning_a4, time_sig_num, time_sig_denom, snap, ticks_per_beat)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.BPM, s.Key, s.Scale, s.TuningA4, s.TimeSigNum, s.TimeSigDenom, boolInt(s.Snap), s.TicksPerBeat); err != nil {
		return wrapErr("musical_settings", err)
	}

	if _, err := tx.Exec(`INSERT INTO project (id, master_level, master_mute, next_instrument_id, next_automation_id)
		VALUES (1, ?, ?, ?, ?)`,
		p.MasterLevel, boolInt(p.MasterMute), p.NextInstrumentID(), p.NextAutomationID()); err != nil {
		return wrapErr("project", err)
	}

	pr := p.PianoRoll
	if _, err := tx.Exec(`INSERT INTO piano_roll
		(id, bpm, time_sig_num, time_sig_denom, ticks_per_beat, playing, playhead, looping, loop_start, loop_end)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pr.BPM, pr.TimeSigNum, pr.TimeSigDenom, pr.TicksPerBeat,
		boolInt(pr.Playing), pr.Playhead, boolInt(pr.Looping), pr.LoopStart, pr.LoopEnd); err != nil {
		return wrapErr("piano_roll", err)
	}

	for i := range p.Buses {
		b := &p.Buses[i]
		if _, err := tx.Exec(`INSERT INTO buses (id, name, level, pan, mute, solo) VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.Name, b.Level, b.Pan, boolInt(b.Mute), boolInt(b.Solo)); err != nil {
			return wrapErr("buses", err)
		}
	}

	for pos, inst := range p.Instruments {
		if err := saveInstrument(tx, pos, inst); err != nil {
			return err
		}
		track, ok := pr.Tracks[inst.ID]
		if !ok {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO piano_tracks (instrument_id, polyphonic) VALUES (?, ?)`,
			inst.ID, boolInt(track.Polyphonic)); err != nil {
			return wrapErr("piano_tracks", err)
		}
		for np, n := range track.Notes {
			if _, err := tx.Exec(`INSERT INTO notes (instrument_id, position, tick, duration, pitch, velocity)
				VALUES (?, ?, ?, ?, ?, ?)`, inst.ID, np, n.Tick, n.Duration, n.Pitch, n.Velocity); err != nil {
				return wrapErr("notes", err)
			}
		}
	}

	for lp, lane := range p.Automation {
		if _, err := tx.Exec(`INSERT INTO automation_lanes
			(id, position, target_kind, target_instrument_id, target_effect_index, target_param_index, enabled, min_value, max_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lane.ID, lp, automationTargetKindString(lane.Target.Kind), lane.Target.InstrumentID,
			lane.Target.EffectIndex, lane.Target.ParamIndex, boolInt(lane.Enabled), lane.MinValue, lane.MaxValue); err != nil {
			return wrapErr("automation_lanes", err)
		}
		for pp, pt := range lane.Points {
			if _, err := tx.Exec(`INSERT INTO automation_points (lane_id, position, tick, value, curve)
				VALUES (?, ?, ?, ?, ?)`, lane.ID, pp, pt.Tick, pt.Value, pt.Curve.String()); err != nil {
				return wrapErr("automation_points", err)
			}
		}
	}

	for dp, def := range p.CustomDefs.All() {
		paramsJSON, err := json.Marshal(def.Params)
		if err != nil {
			return wrapErr("custom_defs", err)
		}
		if _, err := tx.Exec(`INSERT INTO custom_defs (id, position, display_name, definition_name, source_path, params_json)
			VALUES (?, ?, ?, ?, ?, ?)`, def.ID, dp, def.DisplayName, def.DefinitionName, def.SourcePath, string(paramsJSON)); err != nil {
			return wrapErr("custom_defs", err)
		}
	}

	return nil
}

func saveInstrument(tx *sql.Tx, position int, inst *model.Instrument) error {
	hasFilter := inst.Filter != nil
	filterType, cutoff, cutoffMin, cutoffMax := types.FilterLPF, 0.0, 0.0, 0.0
	resonance, resMin, resMax := 0.0, 0.0, 0.0
	cutoffModable := false
	if hasFilter {
		filterType = inst.Filter.Type
		cutoff, cutoffMin, cutoffMax = inst.Filter.Cutoff.Value, inst.Filter.Cutoff.Min, inst.Filter.Cutoff.Max
		resonance, resMin, resMax = inst.Filter.Resonance.Value, inst.Filter.Resonance.Min, inst.Filter.Resonance.Max
		cutoffModable = inst.Filter.CutoffModable
	}

	outputBusID := 0
	if inst.OutputTarget.Kind == types.OutputBus {
		outputBusID = inst.OutputTarget.BusID
	}

	hasSampler := inst.SamplerConfig != nil
	var samplerBufferID sql.NullInt64
	samplerLoopMode := types.LoopNone
	samplerPitchTracking := false
	if hasSampler {
		samplerLoopMode = inst.SamplerConfig.LoopMode
		samplerPitchTracking = inst.SamplerConfig.PitchTracking
		if inst.SamplerConfig.BufferID != nil {
			samplerBufferID = sql.NullInt64{Int64: int64(*inst.SamplerConfig.BufferID), Valid: true}
		}
	}

	hasDrum := inst.DrumSequencer != nil
	drumCurrentPattern, drumPlaying := 0, false
	if hasDrum {
		drumCurrentPattern = inst.DrumSequencer.CurrentPattern
		drumPlaying = inst.DrumSequencer.Playing
	}

	_, err := tx.Exec(`INSERT INTO instruments (
		id, position, name, source, custom_id,
		has_filter, filter_type, filter_cutoff, filter_cutoff_min, filter_cutoff_max,
		filter_resonance, filter_resonance_min, filter_resonance_max, filter_cutoff_modable,
		lfo_enabled, lfo_rate_hz, lfo_depth, lfo_shape, lfo_target,
		env_attack, env_decay, env_sustain, env_release,
		polyphonic, level, pan, mute, solo, output_kind, output_bus_id,
		has_sampler, sampler_buffer_id, sampler_loop_mode, sampler_pitch_tracking,
		has_drum, drum_current_pattern, drum_playing
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, position, inst.Name, inst.Source.String(), inst.CustomID,
		boolInt(hasFilter), filterType.String(), cutoff, cutoffMin, cutoffMax,
		resonance, resMin, resMax, boolInt(cutoffModable),
		boolInt(inst.LFO.Enabled), inst.LFO.RateHz, inst.LFO.Depth, inst.LFO.Shape.String(), lfoTargetString(inst.LFO.Target),
		inst.AmpEnvelope.Attack, inst.AmpEnvelope.Decay, inst.AmpEnvelope.Sustain, inst.AmpEnvelope.Release,
		boolInt(inst.Polyphonic), inst.Level, inst.Pan, boolInt(inst.Mute), boolInt(inst.Solo),
		outputKindString(inst.OutputTarget.Kind), outputBusID,
		boolInt(hasSampler), samplerBufferID, samplerLoopMode.String(), boolInt(samplerPitchTracking),
		boolInt(hasDrum), drumCurrentPattern, boolInt(drumPlaying))
	if err != nil {
		return wrapErr("instruments", err)
	}

	for pp, sp := range inst.SourceParams {
		if _, err := tx.Exec(`INSERT INTO source_params (instrument_id, position, name, kind, value, min_value, max_value)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, inst.ID, pp, sp.Name, scalarKindString(sp.Kind), sp.Value, sp.Min, sp.Max); err != nil {
			return wrapErr("source_params", err)
		}
	}

	for ep, eff := range inst.Effects {
		if _, err := tx.Exec(`INSERT INTO effects (instrument_id, position, type, enabled) VALUES (?, ?, ?, ?)`,
			inst.ID, ep, eff.Type.String(), boolInt(eff.Enabled)); err != nil {
			return wrapErr("effects", err)
		}
		for pp, param := range eff.Params {
			if _, err := tx.Exec(`INSERT INTO effect_params (instrument_id, effect_position, position, name, kind, value, min_value, max_value)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, inst.ID, ep, pp, param.Name, scalarKindString(param.Kind), param.Value, param.Min, param.Max); err != nil {
				return wrapErr("effect_params", err)
			}
		}
	}

	for sp, send := range inst.Sends {
		if _, err := tx.Exec(`INSERT INTO sends (instrument_id, position, bus_id, level, enabled) VALUES (?, ?, ?, ?, ?)`,
			inst.ID, sp, send.BusID, send.Level, boolInt(send.Enabled)); err != nil {
			return wrapErr("sends", err)
		}
	}

	if hasSampler {
		for sp, sl := range inst.SamplerConfig.Slices {
			if _, err := tx.Exec(`INSERT INTO slices (instrument_id, position, slice_id, start_pos, end_pos, name, root_note)
				VALUES (?, ?, ?, ?, ?, ?, ?)`, inst.ID, sp, sl.ID, sl.Start, sl.End, sl.Name, sl.RootNote); err != nil {
				return wrapErr("slices", err)
			}
		}
	}

	if hasDrum {
		ds := inst.DrumSequencer
		for padIdx, pad := range ds.Pads {
			var bufID sql.NullInt64
			if pad.BufferID != nil {
				bufID = sql.NullInt64{Int64: int64(*pad.BufferID), Valid: true}
			}
			if _, err := tx.Exec(`INSERT INTO drum_pads (instrument_id, pad_index, buffer_id, path, name, level)
				VALUES (?, ?, ?, ?, ?, ?)`, inst.ID, padIdx, bufID, pad.Path, pad.Name, pad.Level); err != nil {
				return wrapErr("drum_pads", err)
			}
		}
		for patIdx, pat := range ds.Patterns {
			if _, err := tx.Exec(`INSERT INTO drum_patterns (instrument_id, pattern_index, length) VALUES (?, ?, ?)`,
				inst.ID, patIdx, pat.Length); err != nil {
				return wrapErr("drum_patterns", err)
			}
			for padIdx, steps := range pat.Steps {
				for stepIdx, step := range steps {
					if !step.Active {
						continue // sparse: only active steps are written (§4.8)
					}
					if _, err := tx.Exec(`INSERT INTO drum_steps (instrument_id, pattern_index, pad_index, step_index, velocity)
						VALUES (?, ?, ?, ?, ?)`, inst.ID, patIdx, padIdx, stepIdx, step.Velocity); err != nil {
						return wrapErr("drum_steps", err)
					}
				}
			}
		}
	}

	for mp, mod := range inst.Modulations {
		if _, err := tx.Exec(`INSERT INTO modulations (
			instrument_id, position, mod_id, source_kind, source_instrument_id,
			target_kind, target_instrument_id, target_effect_index, target_param_index, depth, enabled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, mp, mod.ID, modSourceKindString(mod.Source), mod.SourceInstrument,
			automationTargetKindString(mod.Target.Kind), mod.Target.InstrumentID, mod.Target.EffectIndex, mod.Target.ParamIndex,
			mod.Depth, boolInt(mod.Enabled)); err != nil {
			return wrapErr("modulations", err)
		}
	}

	return nil
}

func wrapErr(table string, err error) error {
	return fmt.Errorf("%w: %s: %v", engineerr.ErrPersistence, table, err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intBool(i int) bool { return i != 0 }

// The enum kinds below lack a String/FromString pair in internal/types or
// internal/model, so storage keeps its own stable-string mapping local to
// the schema (§4.8: "enum columns store a stable short string, not the
// ordinal, so the schema survives enum reordering").

func scalarKindString(k types.ScalarKind) string {
	switch k {
	case types.ScalarInt:
		return "int"
	case types.ScalarBool:
		return "bool"
	default:
		return "float"
	}
}

func scalarKindFromString(s string) types.ScalarKind {
	switch s {
	case "int":
		return types.ScalarInt
	case "bool":
		return types.ScalarBool
	default:
		return types.ScalarFloat
	}
}

func lfoTargetString(k types.LFOTargetKind) string {
	switch k {
	case types.LFOTargetFilterCutoff:
		return "filter_cutoff"
	case types.LFOTargetFilterResonance:
		return "filter_resonance"
	default:
		return "none"
	}
}

func lfoTargetFromString(s string) types.LFOTargetKind {
	switch s {
	case "filter_cutoff":
		return types.LFOTargetFilterCutoff
	case "filter_resonance":
		return types.LFOTargetFilterResonance
	default:
		return types.LFOTargetNone
	}
}

func automationTargetKindString(k types.AutomationTargetKind) string {
	switch k {
	case types.TargetInstrumentPan:
		return "instrument_pan"
	case types.TargetFilterCutoff:
		return "filter_cutoff"
	case types.TargetFilterResonance:
		return "filter_resonance"
	case types.TargetEffectParam:
		return "effect_param"
	case types.TargetSamplerRate:
		return "sampler_rate"
	case types.TargetSamplerAmp:
		return "sampler_amp"
	default:
		return "instrument_level"
	}
}

func automationTargetKindFromString(s string) types.AutomationTargetKind {
	switch s {
	case "instrument_pan":
		return types.TargetInstrumentPan
	case "filter_cutoff":
		return types.TargetFilterCutoff
	case "filter_resonance":
		return types.TargetFilterResonance
	case "effect_param":
		return types.TargetEffectParam
	case "sampler_rate":
		return types.TargetSamplerRate
	case "sampler_amp":
		return types.TargetSamplerAmp
	default:
		return types.TargetInstrumentLevel
	}
}

func outputKindString(k types.OutputKind) string {
	if k == types.OutputBus {
		return "bus"
	}
	return "master"
}

func outputKindFromString(s string) types.OutputKind {
	if s == "bus" {
		return types.OutputBus
	}
	return types.OutputMaster
}

func modSourceKindString(k model.ModulationSourceKind) string {
	if k == model.ModSourceInstrumentLevel {
		return "instrument_level"
	}
	return "own_lfo"
}

func modSourceKindFromString(s string) model.ModulationSourceKind {
	if s == "instrument_level" {
		return model.ModSourceInstrumentLevel
	}
	return model.ModSourceOwnLFO
}

// Load reconstructs a full project snapshot from db. Missing optional rows
// (no filter, no sampler, no drum sequencer) fall back to the model's zero
// values rather than erroring (§4.8 forward-compatible load).
func Load(db *sql.DB) (*model.Project, error) {
	p := model.NewProject()
	p.PianoRoll = &model.PianoRoll{Tracks: make(map[uint32]*model.Track)}

	row := db.QueryRow(`SELECT bpm, key_pitch, scale, tuning_a4, time_sig_num, time_sig_denom, snap, ticks_per_beat
		FROM musical_settings WHERE id = 1`)
	var snap int
	if err := row.Scan(&p.Settings.BPM, &p.Settings.Key, &p.Settings.Scale, &p.Settings.TuningA4,
		&p.Settings.TimeSigNum, &p.Settings.TimeSigDenom, &snap, &p.Settings.TicksPerBeat); err != nil && err != sql.ErrNoRows {
		return nil, wrapErr("musical_settings", err)
	}
	p.Settings.Snap = intBool(snap)

	var nextInstID uint32
	var nextAutoID int
	row = db.QueryRow(`SELECT master_level, master_mute, next_instrument_id, next_automation_id FROM project WHERE id = 1`)
	var masterMute int
	if err := row.Scan(&p.MasterLevel, &masterMute, &nextInstID, &nextAutoID); err != nil && err != sql.ErrNoRows {
		return nil, wrapErr("project", err)
	}
	p.MasterMute = intBool(masterMute)
	p.SetNextIDs(nextInstID, nextAutoID)

	row = db.QueryRow(`SELECT bpm, time_sig_num, time_sig_denom, ticks_per_beat, playing, playhead, looping, loop_start, loop_end
		FROM piano_roll WHERE id = 1`)
	var playing, looping int
	if err := row.Scan(&p.PianoRoll.BPM, &p.PianoRoll.TimeSigNum, &p.PianoRoll.TimeSigDenom, &p.PianoRoll.TicksPerBeat,
		&playing, &p.PianoRoll.Playhead, &looping, &p.PianoRoll.LoopStart, &p.PianoRoll.LoopEnd); err != nil && err != sql.ErrNoRows {
		return nil, wrapErr("piano_roll", err)
	}
	p.PianoRoll.Playing = intBool(playing)
	p.PianoRoll.Looping = intBool(looping)

	busRows, err := db.Query(`SELECT id, name, level, pan, mute, solo FROM buses ORDER BY id`)
	if err != nil {
		return nil, wrapErr("buses", err)
	}
	defer busRows.Close()
	for busRows.Next() {
		var b model.Bus
		var mute, solo int
		if err := busRows.Scan(&b.ID, &b.Name, &b.Level, &b.Pan, &mute, &solo); err != nil {
			return nil, wrapErr("buses", err)
		}
		b.Mute, b.Solo = intBool(mute), intBool(solo)
		if b.ID >= 1 && b.ID <= model.NumBuses {
			p.Buses[b.ID-1] = b
		}
	}

	instRows, err := db.Query(`SELECT id, position, name, source, custom_id,
		has_filter, filter_type, filter_cutoff, filter_cutoff_min, filter_cutoff_max,
		filter_resonance, filter_resonance_min, filter_resonance_max, filter_cutoff_modable,
		lfo_enabled, lfo_rate_hz, lfo_depth, lfo_shape, lfo_target,
		env_attack, env_decay, env_sustain, env_release,
		polyphonic, level, pan, mute, solo, output_kind, output_bus_id,
		has_sampler, sampler_buffer_id, sampler_loop_mode, sampler_pitch_tracking,
		has_drum, drum_current_pattern, drum_playing
		FROM instruments ORDER BY position`)
	if err != nil {
		return nil, wrapErr("instruments", err)
	}
	defer instRows.Close()

	type instRow struct {
		pos                   int
		inst                  *model.Instrument
		hasSampler, hasDrum   bool
		samplerBufferID       sql.NullInt64
		samplerLoopMode       string
		samplerPitchTracking  bool
		drumCurrentPattern    int
		drumPlaying           bool
	}
	var loaded []instRow

	for instRows.Next() {
		inst := &model.Instrument{}
		var r instRow
		var sourceStr, filterTypeStr, lfoShapeStr, lfoTargetStr, outputKindStr string
		var hasFilter, hasSampler, hasDrum, lfoEnabled, polyphonic, mute, solo, cutoffModable, pitchTracking, drumPlaying int
		var cutoff, cutoffMin, cutoffMax, resonance, resMin, resMax float64
		var outputBusID int

		if err := instRows.Scan(&inst.ID, &r.pos, &inst.Name, &sourceStr, &inst.CustomID,
			&hasFilter, &filterTypeStr, &cutoff, &cutoffMin, &cutoffMax,
			&resonance, &resMin, &resMax, &cutoffModable,
			&lfoEnabled, &inst.LFO.RateHz, &inst.LFO.Depth, &lfoShapeStr, &lfoTargetStr,
			&inst.AmpEnvelope.Attack, &inst.AmpEnvelope.Decay, &inst.AmpEnvelope.Sustain, &inst.AmpEnvelope.Release,
			&polyphonic, &inst.Level, &inst.Pan, &mute, &solo, &outputKindStr, &outputBusID,
			&hasSampler, &r.samplerBufferID, &r.samplerLoopMode, &pitchTracking,
			&hasDrum, &r.drumCurrentPattern, &drumPlaying); err != nil {
			return nil, wrapErr("instruments", err)
		}

		inst.Source = types.SourceTypeFromString(sourceStr)
		inst.Polyphonic = intBool(polyphonic)
		inst.Mute = intBool(mute)
		inst.Solo = intBool(solo)
		inst.LFO.Enabled = intBool(lfoEnabled)
		inst.LFO.Shape = types.LFOShapeFromString(lfoShapeStr)
		inst.LFO.Target = lfoTargetFromString(lfoTargetStr)
		inst.OutputTarget = types.OutputTarget{Kind: outputKindFromString(outputKindStr), BusID: outputBusID}

		if intBool(hasFilter) {
			inst.Filter = &model.Filter{
				Type:          types.FilterTypeFromString(filterTypeStr),
				Cutoff:        types.ScalarValue{Value: cutoff, Min: cutoffMin, Max: cutoffMax},
				Resonance:     types.ScalarValue{Value: resonance, Min: resMin, Max: resMax},
				CutoffModable: intBool(cutoffModable),
			}
		}

		r.hasSampler = intBool(hasSampler)
		r.hasDrum = intBool(hasDrum)
		r.samplerPitchTracking = intBool(pitchTracking)
		r.drumPlaying = intBool(drumPlaying)
		r.inst = inst
		loaded = append(loaded, r)
	}

	p.Instruments = p.Instruments[:0]
	for _, r := range loaded {
		inst := r.inst

		if r.hasSampler {
			sc := &model.SamplerConfig{
				LoopMode:      types.LoopModeFromString(r.samplerLoopMode),
				PitchTracking: r.samplerPitchTracking,
			}
			if r.samplerBufferID.Valid {
				id := int(r.samplerBufferID.Int64)
				sc.BufferID = &id
			}
			sc.Slices = loadSlices(db, inst.ID)
			inst.SamplerConfig = sc
		}

		if r.hasDrum {
			ds, err := loadDrumSequencer(db, inst.ID, r.drumCurrentPattern, r.drumPlaying)
			if err != nil {
				return nil, err
			}
			inst.DrumSequencer = ds
		}

		params, err := loadSourceParams(db, inst.ID)
		if err != nil {
			return nil, err
		}
		inst.SourceParams = params

		effects, err := loadEffects(db, inst.ID)
		if err != nil {
			return nil, err
		}
		inst.Effects = effects

		sends, err := loadSends(db, inst.ID)
		if err != nil {
			return nil, err
		}
		inst.Sends = sends

		mods, err := loadModulations(db, inst.ID)
		if err != nil {
			return nil, err
		}
		inst.Modulations = mods

		p.Instruments = append(p.Instruments, inst)

		track, err := loadTrack(db, inst.ID)
		if err != nil {
			return nil, err
		}
		p.PianoRoll.Tracks[inst.ID] = track
	}

	lanes, err := loadAutomation(db)
	if err != nil {
		return nil, err
	}
	p.Automation = lanes

	defs, err := loadCustomDefs(db)
	if err != nil {
		return nil, err
	}
	p.CustomDefs = model.NewCustomSynthDefRegistryFromDefs(defs)

	return p, nil
}

func loadSourceParams(db *sql.DB, instID uint32) ([]types.ScalarValue, error) {
	rows, err := db.Query(`SELECT name, kind, value, min_value, max_value FROM source_params
		WHERE instrument_id = ? ORDER BY position`, instID)
	if err != nil {
		return nil, wrapErr("source_params", err)
	}
	defer rows.Close()
	var out []types.ScalarValue
	for rows.Next() {
		var v types.ScalarValue
		var kind string
		if err := rows.Scan(&v.Name, &kind, &v.Value, &v.Min, &v.Max); err != nil {
			return nil, wrapErr("source_params", err)
		}
		v.Kind = scalarKindFromString(kind)
		out = append(out, v)
	}
	return out, nil
}

func loadEffects(db *sql.DB, instID uint32) ([]model.EffectSlot, error) {
	rows, err := db.Query(`SELECT position, type, enabled FROM effects WHERE instrument_id = ? ORDER BY position`, instID)
	if err != nil {
		return nil, wrapErr("effects", err)
	}
	defer rows.Close()
	var out []model.EffectSlot
	var positions []int
	for rows.Next() {
		var pos, enabled int
		var typeStr string
		if err := rows.Scan(&pos, &typeStr, &enabled); err != nil {
			return nil, wrapErr("effects", err)
		}
		out = append(out, model.EffectSlot{Type: types.EffectTypeFromString(typeStr), Enabled: intBool(enabled)})
		positions = append(positions, pos)
	}
	for i, pos := range positions {
		params, err := loadEffectParams(db, instID, pos)
		if err != nil {
			return nil, err
		}
		out[i].Params = params
	}
	return out, nil
}

func loadEffectParams(db *sql.DB, instID uint32, effectPosition int) ([]types.ScalarValue, error) {
	rows, err := db.Query(`SELECT name, kind, value, min_value, max_value FROM effect_params
		WHERE instrument_id = ? AND effect_position = ? ORDER BY position`, instID, effectPosition)
	if err != nil {
		return nil, wrapErr("effect_params", err)
	}
	defer rows.Close()
	var out []types.ScalarValue
	for rows.Next() {
		var v types.ScalarValue
		var kind string
		if err := rows.Scan(&v.Name, &kind, &v.Value, &v.Min, &v.Max); err != nil {
			return nil, wrapErr("effect_params", err)
		}
		v.Kind = scalarKindFromString(kind)
		out = append(out, v)
	}
	return out, nil
}

func loadSends(db *sql.DB, instID uint32) ([]model.Send, error) {
	rows, err := db.Query(`SELECT bus_id, level, enabled FROM sends WHERE instrument_id = ? ORDER BY position`, instID)
	if err != nil {
		return nil, wrapErr("sends", err)
	}
	defer rows.Close()
	var out []model.Send
	for rows.Next() {
		var s model.Send
		var enabled int
		if err := rows.Scan(&s.BusID, &s.Level, &enabled); err != nil {
			return nil, wrapErr("sends", err)
		}
		s.Enabled = intBool(enabled)
		out = append(out, s)
	}
	return out, nil
}

func loadSlices(db *sql.DB, instID uint32) []model.Slice {
	rows, err := db.Query(`SELECT slice_id, start_pos, end_pos, name, root_note FROM slices
		WHERE instrument_id = ? ORDER BY position`, instID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []model.Slice
	for rows.Next() {
		var s model.Slice
		if err := rows.Scan(&s.ID, &s.Start, &s.End, &s.Name, &s.RootNote); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

func loadDrumSequencer(db *sql.DB, instID uint32, currentPattern int, playing bool) (*model.DrumSequencer, error) {
	ds := &model.DrumSequencer{CurrentPattern: currentPattern, Playing: playing}
	for p := range ds.Patterns {
		ds.Patterns[p] = model.DrumPattern{Length: 16, Steps: make([][]model.DrumStep, 16)}
		for pad := range ds.Patterns[p].Steps {
			ds.Patterns[p].Steps[pad] = make([]model.DrumStep, 16)
		}
	}

	padRows, err := db.Query(`SELECT pad_index, buffer_id, path, name, level FROM drum_pads WHERE instrument_id = ?`, instID)
	if err != nil {
		return nil, wrapErr("drum_pads", err)
	}
	defer padRows.Close()
	for padRows.Next() {
		var idx int
		var bufID sql.NullInt64
		var pad model.DrumPad
		if err := padRows.Scan(&idx, &bufID, &pad.Path, &pad.Name, &pad.Level); err != nil {
			return nil, wrapErr("drum_pads", err)
		}
		if bufID.Valid {
			id := int(bufID.Int64)
			pad.BufferID = &id
		}
		if idx >= 0 && idx < len(ds.Pads) {
			ds.Pads[idx] = pad
		}
	}

	patRows, err := db.Query(`SELECT pattern_index, length FROM drum_patterns WHERE instrument_id = ?`, instID)
	if err != nil {
		return nil, wrapErr("drum_patterns", err)
	}
	defer patRows.Close()
	var patternLengths = map[int]int{}
	for patRows.Next() {
		var idx, length int
		if err := patRows.Scan(&idx, &length); err != nil {
			return nil, wrapErr("drum_patterns", err)
		}
		patternLengths[idx] = length
	}
	for idx, length := range patternLengths {
		if idx >= 0 && idx < len(ds.Patterns) {
			ds.Patterns[idx].Length = length
		}
	}

	stepRows, err := db.Query(`SELECT pattern_index, pad_index, step_index, velocity FROM drum_steps WHERE instrument_id = ?`, instID)
	if err != nil {
		return nil, wrapErr("drum_steps", err)
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var patIdx, padIdx, stepIdx, velocity int
		if err := stepRows.Scan(&patIdx, &padIdx, &stepIdx, &velocity); err != nil {
			return nil, wrapErr("drum_steps", err)
		}
		if patIdx < 0 || patIdx >= len(ds.Patterns) {
			continue
		}
		if padIdx < 0 || padIdx >= len(ds.Patterns[patIdx].Steps) {
			continue
		}
		if stepIdx < 0 || stepIdx >= len(ds.Patterns[patIdx].Steps[padIdx]) {
			continue
		}
		ds.Patterns[patIdx].Steps[padIdx][stepIdx] = model.DrumStep{Active: true, Velocity: velocity}
	}

	return ds, nil
}

func loadModulations(db *sql.DB, instID uint32) ([]model.Modulation, error) {
	rows, err := db.Query(`SELECT mod_id, source_kind, source_instrument_id, target_kind,
		target_instrument_id, target_effect_index, target_param_index, depth, enabled
		FROM modulations WHERE instrument_id = ? ORDER BY position`, instID)
	if err != nil {
		return nil, wrapErr("modulations", err)
	}
	defer rows.Close()
	var out []model.Modulation
	for rows.Next() {
		var m model.Modulation
		var sourceKindStr, targetKindStr string
		var enabled int
		if err := rows.Scan(&m.ID, &sourceKindStr, &m.SourceInstrument, &targetKindStr,
			&m.Target.InstrumentID, &m.Target.EffectIndex, &m.Target.ParamIndex, &m.Depth, &enabled); err != nil {
			return nil, wrapErr("modulations", err)
		}
		m.Source = modSourceKindFromString(sourceKindStr)
		m.Target.Kind = automationTargetKindFromString(targetKindStr)
		m.Enabled = intBool(enabled)
		out = append(out, m)
	}
	return out, nil
}

func loadTrack(db *sql.DB, instID uint32) (*model.Track, error) {
	track := &model.Track{}
	row := db.QueryRow(`SELECT polyphonic FROM piano_tracks WHERE instrument_id = ?`, instID)
	var polyphonic int
	if err := row.Scan(&polyphonic); err != nil && err != sql.ErrNoRows {
		return nil, wrapErr("piano_tracks", err)
	}
	track.Polyphonic = intBool(polyphonic)

	rows, err := db.Query(`SELECT tick, duration, pitch, velocity FROM notes WHERE instrument_id = ? ORDER BY position`, instID)
	if err != nil {
		return nil, wrapErr("notes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.Tick, &n.Duration, &n.Pitch, &n.Velocity); err != nil {
			return nil, wrapErr("notes", err)
		}
		track.Notes = append(track.Notes, n)
	}
	return track, nil
}

func loadAutomation(db *sql.DB) ([]*model.AutomationLane, error) {
	rows, err := db.Query(`SELECT id, target_kind, target_instrument_id, target_effect_index, target_param_index,
		enabled, min_value, max_value FROM automation_lanes ORDER BY position`)
	if err != nil {
		return nil, wrapErr("automation_lanes", err)
	}
	defer rows.Close()
	var out []*model.AutomationLane
	for rows.Next() {
		lane := &model.AutomationLane{}
		var targetKindStr string
		var enabled int
		if err := rows.Scan(&lane.ID, &targetKindStr, &lane.Target.InstrumentID, &lane.Target.EffectIndex,
			&lane.Target.ParamIndex, &enabled, &lane.MinValue, &lane.MaxValue); err != nil {
			return nil, wrapErr("automation_lanes", err)
		}
		lane.Target.Kind = automationTargetKindFromString(targetKindStr)
		lane.Enabled = intBool(enabled)
		out = append(out, lane)
	}
	for _, lane := range out {
		points, err := loadAutomationPoints(db, lane.ID)
		if err != nil {
			return nil, err
		}
		lane.Points = points
	}
	return out, nil
}

func loadAutomationPoints(db *sql.DB, laneID int) ([]model.AutomationPoint, error) {
	rows, err := db.Query(`SELECT tick, value, curve FROM automation_points WHERE lane_id = ? ORDER BY position`, laneID)
	if err != nil {
		return nil, wrapErr("automation_points", err)
	}
	defer rows.Close()
	var out []model.AutomationPoint
	for rows.Next() {
		var p model.AutomationPoint
		var curveStr string
		if err := rows.Scan(&p.Tick, &p.Value, &curveStr); err != nil {
			return nil, wrapErr("automation_points", err)
		}
		p.Curve = types.CurveTypeFromString(curveStr)
		out = append(out, p)
	}
	return out, nil
}

func loadCustomDefs(db *sql.DB) ([]model.CustomSynthDef, error) {
	rows, err := db.Query(`SELECT id, position, display_name, definition_name, source_path, params_json
		FROM custom_defs ORDER BY position`)
	if err != nil {
		return nil, wrapErr("custom_defs", err)
	}
	defer rows.Close()
	var out []model.CustomSynthDef
	for rows.Next() {
		var d model.CustomSynthDef
		var pos int
		var paramsJSON string
		if err := rows.Scan(&d.ID, &pos, &d.DisplayName, &d.DefinitionName, &d.SourcePath, &paramsJSON); err != nil {
			return nil, wrapErr("custom_defs", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &d.Params); err != nil {
			return nil, wrapErr("custom_defs", err)
		}
		out = append(out, d)
	}
	return out, nil
}
