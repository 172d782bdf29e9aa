package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"process", "extract", "rebuild", "watch"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, processCmd.Flags().Lookup("review"))
	assert.NotNil(t, processCmd.Flags().Lookup("all"))
	assert.NotNil(t, extractCmd.Flags().Lookup("markdown"))
	assert.NotNil(t, rebuildCmd.Flags().Lookup("archive"))
}

func TestReadInput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte("User: Hi"), 0o600))

	got, err := readInput(path)
	require.NoError(t, err)
	assert.Equal(t, "User: Hi", got)

	_, err = readInput(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
