package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/akhildatla/iridium/pkg/vm"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, vm.DefaultHeapSize, cfg.Machine.HeapSize)
	assert.Equal(t, "compat", cfg.Machine.Division)
	assert.False(t, cfg.Machine.StrictJumps)
	assert.Equal(t, ">>> ", cfg.Shell.Prompt)
	assert.True(t, cfg.Shell.Banner)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[machine]
heap_size = 64
strict_jumps = true
division = "quotient"
max_steps = 5000

[shell]
prompt = "ir> "

[log]
level = "warn"
`)

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 64, cfg.Machine.HeapSize)
	assert.True(t, cfg.Machine.StrictJumps)
	assert.Equal(t, "quotient", cfg.Machine.Division)
	assert.Equal(t, int64(5000), cfg.Machine.MaxSteps)
	assert.Equal(t, "ir> ", cfg.Shell.Prompt)
	// keys missing from the file keep their defaults
	assert.True(t, cfg.Shell.Banner)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"heap too small", "[machine]\nheap_size = 3\n"},
		{"negative steps", "[machine]\nmax_steps = -1\n"},
		{"division mode", "[machine]\ndivision = \"floor\"\n"},
		{"log level", "[log]\nlevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeConfig(t, "[machine\nheap_size = "))
	assert.ErrorContains(t, err, "parse error")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConfig_NewVM(t *testing.T) {
	cfg := Default()
	cfg.Machine.HeapSize = 8
	cfg.Machine.Division = "quotient"
	cfg.Machine.StrictJumps = true

	m := cfg.NewVM(log.NewTestLogger(t))
	assert.Equal(t, 8, m.HeapSize())

	// DIV $0 $1 $2 with quotient semantics
	assert.NoError(t, m.SetRegister(0, 17))
	assert.NoError(t, m.SetRegister(1, 5))
	m.AddProgramBytes(vm.Encode(vm.OpDIV, 0, 1, 2)...)
	_, err := m.Step()
	assert.NoError(t, err)
	r, _ := m.Register(2)
	assert.Equal(t, int32(3), r)

	// strict jumps reject targets past the program end
	assert.NoError(t, m.SetRegister(3, 100))
	m.AddProgramBytes(vm.Encode(vm.OpJMP, 3)...)
	_, err = m.Step()
	assert.True(t, errors.Is(err, vm.ErrJumpOutOfRange))
}

func TestConfig_MaxSteps(t *testing.T) {
	cfg := Default()
	cfg.Machine.MaxSteps = 10

	m := cfg.NewVM(nil)
	m.AddProgramBytes(vm.Encode(vm.OpJMP, 0)...)
	_, err := m.Run()
	assert.True(t, errors.Is(err, vm.ErrInstructionLimit))
}

func TestCreateLogger(t *testing.T) {
	assert.NotNil(t, CreateLogger(false, false))
	assert.NotNil(t, CreateLogger(true, false))
	assert.NotNil(t, CreateLogger(false, true))

	cfg := Default()
	cfg.Log.Level = "error"
	assert.NotNil(t, cfg.Logger(false, false))
}
