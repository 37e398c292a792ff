package storage

// CurrentSchemaVersion is stamped into the one-row schema_version table
// (§4.8). Loading tolerates missing optional tables from older files by
// substituting defaults; it never refuses to load on a version mismatch.
const CurrentSchemaVersion = 1

// schemaDDL creates one table per entity kind (§4.8). Every foreign
// reference is an id, never an ordinal; every ordered list carries an
// explicit position column.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS musical_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	bpm REAL NOT NULL,
	key_pitch INTEGER NOT NULL,
	scale TEXT NOT NULL,
	tuning_a4 REAL NOT NULL,
	time_sig_num INTEGER NOT NULL,
	time_sig_denom INTEGER NOT NULL,
	snap INTEGER NOT NULL,
	ticks_per_beat INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS project (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	master_level REAL NOT NULL,
	master_mute INTEGER NOT NULL,
	next_instrument_id INTEGER NOT NULL,
	next_automation_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS piano_roll (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	bpm REAL NOT NULL,
	time_sig_num INTEGER NOT NULL,
	time_sig_denom INTEGER NOT NULL,
	ticks_per_beat INTEGER NOT NULL,
	playing INTEGER NOT NULL,
	playhead INTEGER NOT NULL,
	looping INTEGER NOT NULL,
	loop_start INTEGER NOT NULL,
	loop_end INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS buses (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	level REAL NOT NULL,
	pan REAL NOT NULL,
	mute INTEGER NOT NULL,
	solo INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS instruments (
	id INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	custom_id INTEGER NOT NULL,
	has_filter INTEGER NOT NULL,
	filter_type TEXT NOT NULL,
	filter_cutoff REAL NOT NULL, filter_cutoff_min REAL NOT NULL, filter_cutoff_max REAL NOT NULL,
	filter_resonance REAL NOT NULL, filter_resonance_min REAL NOT NULL, filter_resonance_max REAL NOT NULL,
	filter_cutoff_modable INTEGER NOT NULL,
	lfo_enabled INTEGER NOT NULL,
	lfo_rate_hz REAL NOT NULL,
	lfo_depth REAL NOT NULL,
	lfo_shape TEXT NOT NULL,
	lfo_target TEXT NOT NULL,
	env_attack REAL NOT NULL, env_decay REAL NOT NULL, env_sustain REAL NOT NULL, env_release REAL NOT NULL,
	polyphonic INTEGER NOT NULL,
	level REAL NOT NULL,
	pan REAL NOT NULL,
	mute INTEGER NOT NULL,
	solo INTEGER NOT NULL,
	output_kind TEXT NOT NULL,
	output_bus_id INTEGER NOT NULL,
	has_sampler INTEGER NOT NULL,
	sampler_buffer_id INTEGER,
	sampler_loop_mode TEXT NOT NULL,
	sampler_pitch_tracking INTEGER NOT NULL,
	has_drum INTEGER NOT NULL,
	drum_current_pattern INTEGER NOT NULL,
	drum_playing INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS source_params (
	instrument_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	value REAL NOT NULL,
	min_value REAL NOT NULL,
	max_value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS effects (
	instrument_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	type TEXT NOT NULL,
	enabled INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS effect_params (
	instrument_id INTEGER NOT NULL,
	effect_position INTEGER NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	value REAL NOT NULL,
	min_value REAL NOT NULL,
	max_value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS sends (
	instrument_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	bus_id INTEGER NOT NULL,
	level REAL NOT NULL,
	enabled INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS slices (
	instrument_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	slice_id INTEGER NOT NULL,
	start_pos REAL NOT NULL,
	end_pos REAL NOT NULL,
	name TEXT NOT NULL,
	root_note INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS drum_pads (
	instrument_id INTEGER NOT NULL,
	pad_index INTEGER NOT NULL,
	buffer_id INTEGER,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	level REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS drum_patterns (
	instrument_id INTEGER NOT NULL,
	pattern_index INTEGER NOT NULL,
	length INTEGER NOT NULL
);

-- Sparse: only active=true steps are written (§4.8); all others are
-- implicitly inactive on load.
CREATE TABLE IF NOT EXISTS drum_steps (
	instrument_id INTEGER NOT NULL,
	pattern_index INTEGER NOT NULL,
	pad_index INTEGER NOT NULL,
	step_index INTEGER NOT NULL,
	velocity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS modulations (
	instrument_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	mod_id INTEGER NOT NULL,
	source_kind TEXT NOT NULL,
	source_instrument_id INTEGER NOT NULL,
	target_kind TEXT NOT NULL,
	target_instrument_id INTEGER NOT NULL,
	target_effect_index INTEGER NOT NULL,
	target_param_index INTEGER NOT NULL,
	depth REAL NOT NULL,
	enabled INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS piano_tracks (
	instrument_id INTEGER PRIMARY KEY,
	polyphonic INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	instrument_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	tick INTEGER NOT NULL,
	duration INTEGER NOT NULL,
	pitch INTEGER NOT NULL,
	velocity INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS automation_lanes (
	id INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	target_kind TEXT NOT NULL,
	target_instrument_id INTEGER NOT NULL,
	target_effect_index INTEGER NOT NULL,
	target_param_index INTEGER NOT NULL,
	enabled INTEGER NOT NULL,
	min_value REAL NOT NULL,
	max_value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS automation_points (
	lane_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	tick INTEGER NOT NULL,
	value REAL NOT NULL,
	curve TEXT NOT NULL
);

-- params_json holds the []CustomSynthDefParam list encoded with
-- jsoniter.ConfigCompatibleWithStandardLibrary (§4.8), matching the
-- teacher's storage.go convention of storing parameter blobs as JSON text
-- columns rather than one row per field.
CREATE TABLE IF NOT EXISTS custom_defs (
	id INTEGER PRIMARY KEY,
	position INTEGER NOT NULL,
	display_name TEXT NOT NULL,
	definition_name TEXT NOT NULL,
	source_path TEXT NOT NULL,
	params_json TEXT NOT NULL
);
`

var allTables = []string{
	"schema_version", "musical_settings", "project", "piano_roll", "buses",
	"instruments", "source_params", "effects", "effect_params", "sends",
	"slices", "drum_pads", "drum_patterns", "drum_steps", "modulations",
	"piano_tracks", "notes", "automation_lanes", "automation_points",
	"custom_defs",
}
