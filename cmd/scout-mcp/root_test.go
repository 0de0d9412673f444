package main

import (
	"bytes"
	"testing"

	"github.com/josepht96/scout-mcp/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	debug = false
	assert.Equal(t, zerolog.WarnLevel, newLogger(config.LogConfig{Level: "warn"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(config.LogConfig{Level: "nonsense"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(config.LogConfig{}).GetLevel())

	debug = true
	defer func() { debug = false }()
	assert.Equal(t, zerolog.DebugLevel, newLogger(config.LogConfig{Level: "error"}).GetLevel())
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "run", "history", "version"})
}

func TestVersionCommand(t *testing.T) {
	rootCmd.Version = "1.2.3"
	var out bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.Equal(t, "scout-mcp version 1.2.3\n", out.String())
}

func TestRunRequiresCollectionID(t *testing.T) {
	cmd := newRunCmd()
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"123-c1"}))
}
