package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

const datasetExt = ".geojson"

// job is one dataset to read from In and write to Out.
type job struct {
	In  string
	Out string
}

// resolveJobs turns the -f/-d/-o flags into jobs. A file writes to
// <base><suffix><ext> by default; a directory writes each dataset under
// the same name into <dir><suffix>.
func resolveJobs(file, dir, output, suffix string) ([]job, error) {
	switch {
	case file != "" && dir != "":
		return nil, eris.New("use either --file or --directory, not both")
	case file != "":
		if !strings.EqualFold(filepath.Ext(file), datasetExt) {
			return nil, eris.Errorf("input must be a %s file: %s", datasetExt, file)
		}
		in, err := filepath.Abs(file)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve %s", file)
		}
		out := output
		if out == "" {
			ext := filepath.Ext(in)
			out = strings.TrimSuffix(in, ext) + suffix + ext
		}
		return []job{{In: in, Out: out}}, nil
	case dir != "":
		in, err := filepath.Abs(dir)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve %s", dir)
		}
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() {
			return nil, eris.Errorf("input directory does not exist: %s", in)
		}
		outDir := output
		if outDir == "" {
			outDir = strings.TrimRight(in, string(filepath.Separator)) + suffix
		}
		names, err := listDatasets(in)
		if err != nil {
			return nil, err
		}
		jobs := make([]job, len(names))
		for i, name := range names {
			jobs[i] = job{In: filepath.Join(in, name), Out: filepath.Join(outDir, name)}
		}
		return jobs, nil
	default:
		return nil, eris.New("one of --file or --directory is required")
	}
}

// listDatasets returns the .geojson file names in dir, sorted.
func listDatasets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), datasetExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// writeOutput writes data to path, creating parent directories.
func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}
