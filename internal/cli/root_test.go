package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "routine", cmd.Use)
	assert.Contains(t, cmd.Long, "event log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "run", "replay", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"db", "dispatch", "args", "base-url", "metrics-addr", "wait"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "[]", runCmd.Flags().Lookup("args").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", t.TempDir(), "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidEnvironmentConfig(t *testing.T) {
	t.Setenv("ROUTINE_LOG_LEVEL", "chatty")

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name    string
		cfg     config.Config
		verbose bool
		check   func(t *testing.T, out string)
	}{
		{
			name: "text info hides debug",
			cfg:  config.Config{LogLevel: "info", LogFormat: "text"},
			check: func(t *testing.T, out string) {
				assert.NotContains(t, out, "debug line")
				assert.Contains(t, out, "level=INFO msg=\"info line\"")
			},
		},
		{
			name:    "verbose enables debug",
			cfg:     config.Config{LogLevel: "warn", LogFormat: "text"},
			verbose: true,
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "debug line")
			},
		},
		{
			name: "json handler",
			cfg:  config.Config{LogLevel: "info", LogFormat: "json"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"msg":"info line"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			setupLogging(buf, tt.cfg, tt.verbose)
			slog.Debug("debug line")
			slog.Info("info line")
			tt.check(t, buf.String())
		})
	}
}
