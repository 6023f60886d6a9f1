// Package config loads and validates run settings. A settings file is
// TOML; its shape is checked against an embedded CUE schema before
// decoding, so unknown keys and type mismatches fail up front with a
// schema position instead of surfacing mid-run.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pelletier/go-toml/v2"
)

// Mode selects what a run does with the loaded model.
type Mode string

const (
	// ModeCheck traces the commodity network and reports, without solving.
	ModeCheck Mode = "check"
	// ModeMyopic solves the horizon as a sequence of limited-foresight windows.
	ModeMyopic Mode = "myopic"
	// ModeMonteCarlo solves perturbed copies of the model on a worker pool.
	ModeMonteCarlo Mode = "monte_carlo"
)

// ParseMode matches a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(s))
	switch m {
	case ModeCheck, ModeMyopic, ModeMonteCarlo:
		return m, nil
	}
	return "", fmt.Errorf("config: unknown mode %q (choices: check, myopic, monte_carlo)", s)
}

// MyopicSettings control how the horizon is split into windows.
type MyopicSettings struct {
	ViewDepth int `json:"view_depth"`
	StepSize  int `json:"step_size"`
}

// MonteCarloSettings locate the tweak file and size the worker pool.
type MonteCarloSettings struct {
	RunSettings string `json:"run_settings"`
	NumWorkers  int    `json:"num_workers"`
}

// Config is one scenario's run settings. Relative paths are resolved
// against the directory of the file they were read from.
type Config struct {
	Scenario       string `json:"scenario"`
	Mode           Mode   `json:"mode"`
	InputDatabase  string `json:"input_database"`
	OutputDatabase string `json:"output_database"`
	SolverName     string `json:"solver_name"`
	SaveDuals      bool   `json:"save_duals"`

	Myopic     *MyopicSettings     `json:"myopic"`
	MonteCarlo *MonteCarloSettings `json:"monte_carlo"`

	// SolverOptions maps engine names to options handed to the engine
	// factory verbatim.
	SolverOptions map[string]map[string]any `json:"solver_options"`
}

//go:embed schema.cue
var schemaSrc string

// Load reads a settings file, checks it against the schema, and applies
// the cross-field checks the schema cannot express.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Mode names match case-insensitively.
	if m, ok := raw["mode"].(string); ok {
		raw["mode"] = strings.ToLower(m)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("config schema has no #Config: %w", err)
	}

	val := ctx.Encode(raw)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	unified := def.Unify(val)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, fromCUEError(err)
	}

	cfg := &Config{}
	if err := unified.Decode(cfg); err != nil {
		return nil, fromCUEError(err)
	}
	return cfg, nil
}

// finish resolves paths against dir and validates the settings that
// depend on each other or on the filesystem.
func (c *Config) finish(dir string) error {
	if strings.Contains(c.Scenario, "-") {
		return &ValidationError{
			Field:   "scenario",
			Message: fmt.Sprintf("name %q must not contain %q; dashes separate iteration labels", c.Scenario, "-"),
		}
	}
	c.InputDatabase = resolvePath(dir, c.InputDatabase)
	c.OutputDatabase = resolvePath(dir, c.OutputDatabase)
	if _, err := os.Stat(c.InputDatabase); err != nil {
		return &ValidationError{
			Field:   "input_database",
			Message: fmt.Sprintf("cannot locate the input database: %v", err),
		}
	}
	if _, err := os.Stat(c.OutputDatabase); err != nil {
		return &ValidationError{
			Field:   "output_database",
			Message: fmt.Sprintf("cannot locate the output database: %v", err),
		}
	}

	switch c.Mode {
	case ModeMyopic:
		if c.Myopic == nil {
			return &ValidationError{Field: "myopic", Message: "myopic mode needs a [myopic] section"}
		}
		if c.Myopic.StepSize > c.Myopic.ViewDepth {
			return &ValidationError{
				Field:   "myopic.step_size",
				Message: fmt.Sprintf("step size %d exceeds view depth %d", c.Myopic.StepSize, c.Myopic.ViewDepth),
			}
		}
		if c.InputDatabase != c.OutputDatabase {
			return &ValidationError{
				Field:   "output_database",
				Message: "myopic mode threads state through its results; input and output must be the same database",
			}
		}
		if c.SolverName == "" {
			return &ValidationError{Field: "solver_name", Message: "myopic mode needs a solver"}
		}
	case ModeMonteCarlo:
		if c.MonteCarlo == nil {
			return &ValidationError{Field: "monte_carlo", Message: "monte_carlo mode needs a [monte_carlo] section"}
		}
		c.MonteCarlo.RunSettings = resolvePath(dir, c.MonteCarlo.RunSettings)
		if _, err := os.Stat(c.MonteCarlo.RunSettings); err != nil {
			return &ValidationError{
				Field:   "monte_carlo.run_settings",
				Message: fmt.Sprintf("cannot locate the run settings file: %v", err),
			}
		}
		if c.SolverName == "" {
			return &ValidationError{Field: "solver_name", Message: "monte_carlo mode needs a solver"}
		}
	}
	return nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// OptionsFor returns the options block for one engine, or nil.
func (c *Config) OptionsFor(engine string) map[string]any {
	return c.SolverOptions[engine]
}

// Summary renders the settings as an aligned block for the run log.
func (c *Config) Summary() string {
	var b strings.Builder
	line := func(k string, v any) {
		fmt.Fprintf(&b, "%25s: %v\n", k, v)
	}
	line("scenario", c.Scenario)
	line("mode", c.Mode)
	line("input database", c.InputDatabase)
	line("output database", c.OutputDatabase)
	if c.SolverName != "" {
		line("solver", c.SolverName)
	}
	line("save duals", c.SaveDuals)
	if c.Myopic != nil {
		line("myopic view depth", c.Myopic.ViewDepth)
		line("myopic step size", c.Myopic.StepSize)
	}
	if c.MonteCarlo != nil {
		line("monte carlo settings", c.MonteCarlo.RunSettings)
		line("monte carlo workers", c.MonteCarlo.NumWorkers)
	}
	return b.String()
}
