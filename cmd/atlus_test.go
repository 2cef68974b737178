package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/pkg/atlus"
)

type fakeAtlus struct {
	calls int
}

func (f *fakeAtlus) Batch(_ context.Context, _ string, reqs []atlus.Request) ([]atlus.Result, error) {
	f.calls++
	out := make([]atlus.Result, len(reqs))
	for i, r := range reqs {
		if r.Value == "PO BOX 1" {
			out[i] = atlus.Result{"@id": r.ID, "error": "could not parse"}
			continue
		}
		out[i] = atlus.Result{"@id": r.ID, "addr:housenumber": "66", "addr:street": "Mint Street"}
	}
	return out, nil
}

const atlusDataset = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "1", "properties": {"shop": "coffee", "addr:street_address": "66 Mint St"}},
    {"type": "Feature", "id": "2", "properties": {"shop": "coffee", "addr:street_address": "PO BOX 1"}}
  ]
}`

func TestAtlusFileJob(t *testing.T) {
	dir := writeDatasets(t, map[string]string{"in.geojson": atlusDataset})
	j := job{In: filepath.Join(dir, "in.geojson"), Out: filepath.Join(dir, "out", "in.geojson")}
	c := &fakeAtlus{}
	var out bytes.Buffer

	err := atlusFileJob(context.Background(), c, j, atlus.FieldAddress, atlus.ApplyOptions{BatchSize: 10}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, c.calls)
	assert.Contains(t, out.String(), "in.geojson")

	data, err := os.ReadFile(j.Out)
	require.NoError(t, err)
	ds, err := model.DecodeDataset(data)
	require.NoError(t, err)
	require.Len(t, ds.Features, 2)

	street, _ := ds.Features[0].Tag("addr:street")
	assert.Equal(t, "Mint Street", street)
	assert.False(t, ds.Features[0].HasTag("addr:street_address"))

	kept, _ := ds.Features[1].Tag("addr:street_address")
	assert.Equal(t, "PO BOX 1", kept)
}

func TestAtlusFileJob_NothingMerged(t *testing.T) {
	dir := writeDatasets(t, map[string]string{"in.geojson": `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {"shop": "coffee"}}]}`})
	j := job{In: filepath.Join(dir, "in.geojson"), Out: filepath.Join(dir, "out.geojson")}

	err := atlusFileJob(context.Background(), &fakeAtlus{}, j, atlus.FieldAddress, atlus.ApplyOptions{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.NoFileExists(t, j.Out)
}
