package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveJobs_File(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "shell.geojson")

	jobs, err := resolveJobs(in, "", "", "_processed")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, in, jobs[0].In)
	assert.Equal(t, filepath.Join(dir, "shell_processed.geojson"), jobs[0].Out)

	jobs, err = resolveJobs(in, "", "/tmp/out.geojson", "_processed")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.geojson", jobs[0].Out)
}

func TestResolveJobs_Directory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.geojson", "a.geojson", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.geojson"), 0o755))

	jobs, err := resolveJobs("", dir, "", "_processed")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, filepath.Join(dir, "a.geojson"), jobs[0].In)
	assert.Equal(t, filepath.Join(dir+"_processed", "a.geojson"), jobs[0].Out)
	assert.Equal(t, filepath.Join(dir, "b.geojson"), jobs[1].In)
}

func TestResolveJobs_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		dir  string
		want string
	}{
		{name: "neither", want: "required"},
		{name: "both", file: "a.geojson", dir: dir, want: "not both"},
		{name: "wrong extension", file: "a.json", want: "must be a .geojson file"},
		{name: "missing directory", dir: filepath.Join(dir, "nope"), want: "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveJobs(tt.file, tt.dir, "", "_processed")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteOutput_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "deep", "x.geojson")
	require.NoError(t, writeOutput(path, []byte("{}")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
