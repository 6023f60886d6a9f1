package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "model.db")
	cfgPath := writeConfig(t, dir, `
scenario = "demo"
mode = "check"
input_database = "model.db"
output_database = "model.db"
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{ConfigPath: cfgPath}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "scenario: demo")
	assert.Contains(t, out, "mode: check")
	assert.Contains(t, out, filepath.Join(dir, "model.db"))
}

func TestValidateCommand_AnyModeAccepted(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "model.db")
	touch(t, dir, "runs.csv")
	cfgPath := writeConfig(t, dir, `
scenario = "demo"
mode = "monte_carlo"
input_database = "model.db"
output_database = "model.db"
solver_name = "cbc"

[monte_carlo]
run_settings = "runs.csv"
num_workers = 3
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{ConfigPath: cfgPath}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "monte carlo workers: 3")
}

func TestValidateCommand_RejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
scenario = "demo"
mode = "warp"
input_database = "model.db"
output_database = "model.db"
`)

	rootOpts := &RootOptions{ConfigPath: cfgPath}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "load configuration")
}

func TestValidateCommand_MissingConfigFile(t *testing.T) {
	rootOpts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateThroughRoot(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "model.db")
	cfgPath := writeConfig(t, dir, `
scenario = "demo"
mode = "check"
input_database = "model.db"
output_database = "model.db"
`)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"validate", "--config", cfgPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "is valid")
}
