package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"serve", "calibration", "import", "accuracy", "compare", "dashboard", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "review-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCalibrationCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range calibrationCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"apply", "status", "delete", "points"} {
		assert.True(t, names[name], "expected calibration subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_Flags(t *testing.T) {
	require.NotNil(t, importCmd.Flags().Lookup("file"))
	score := importCmd.Flags().Lookup("score")
	require.NotNil(t, score)
	assert.Equal(t, "false", score.DefValue)
}

func TestPointsCommand_Defaults(t *testing.T) {
	length := calibrationPointsCmd.Flags().Lookup("length")
	require.NotNil(t, length)
	assert.Equal(t, "105", length.DefValue)

	width := calibrationPointsCmd.Flags().Lookup("width")
	require.NotNil(t, width)
	assert.Equal(t, "68", width.DefValue)
}

func TestMatchFlags_Required(t *testing.T) {
	for _, name := range []string{"status", "delete"} {
		c, _, err := calibrationCmd.Find([]string{name})
		require.NoError(t, err)
		f := c.Flags().Lookup("match")
		require.NotNil(t, f, name)
		assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag], name)
	}
}
