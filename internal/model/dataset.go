package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	memberFeatures   = "features"
	memberAttributes = "dataset_attributes"
	attrCleaning     = "cleaning"
)

// StatusImported marks a dataset that has already been imported and must
// never be reprocessed.
const StatusImported = "imported"

// Cleaning is the provenance record stamped by the pipeline.
type Cleaning struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Status  string `json:"status,omitempty"`
}

// Dataset is a GeoJSON FeatureCollection with dataset-level attributes.
// Top-level members the pipeline does not know about are kept in order.
type Dataset struct {
	members    *orderedmap.OrderedMap[string, json.RawMessage]
	Features   []*Feature
	Attributes *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewDataset returns an empty FeatureCollection holding features.
func NewDataset(features ...*Feature) *Dataset {
	members := orderedmap.New[string, json.RawMessage]()
	members.Set("type", json.RawMessage(`"FeatureCollection"`))
	members.Set(memberFeatures, json.RawMessage(`[]`))
	return &Dataset{
		members:    members,
		Features:   features,
		Attributes: orderedmap.New[string, json.RawMessage](),
	}
}

// DecodeDataset parses a dataset document.
func DecodeDataset(data []byte) (*Dataset, error) {
	members := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, members); err != nil {
		return nil, eris.Wrap(err, "model: decode dataset")
	}

	ds := &Dataset{members: members, Attributes: orderedmap.New[string, json.RawMessage]()}

	if raw, ok := members.Get(memberFeatures); ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &ds.Features); err != nil {
			return nil, eris.Wrap(err, "model: decode features")
		}
	}
	if raw, ok := members.Get(memberAttributes); ok && !isNull(raw) {
		if err := json.Unmarshal(raw, ds.Attributes); err != nil {
			return nil, eris.Wrap(err, "model: decode dataset attributes")
		}
	}
	return ds, nil
}

// Cleaning returns the stamped provenance record, if any.
func (d *Dataset) Cleaning() (Cleaning, bool) {
	if d.Attributes == nil {
		return Cleaning{}, false
	}
	raw, ok := d.Attributes.Get(attrCleaning)
	if !ok || isNull(raw) {
		return Cleaning{}, false
	}
	var c Cleaning
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cleaning{}, false
	}
	return c, true
}

// SetCleaning stamps the provenance record.
func (d *Dataset) SetCleaning(c Cleaning) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "model: encode cleaning")
	}
	if d.Attributes == nil {
		d.Attributes = orderedmap.New[string, json.RawMessage]()
	}
	d.Attributes.Set(attrCleaning, raw)
	return nil
}

// Bounds returns the bounding box of all point features. ok is false when
// no feature has a point geometry.
func (d *Dataset) Bounds() (*geom.Bounds, bool) {
	b := geom.NewBounds(geom.XY)
	found := false
	for _, f := range d.Features {
		p, ok := f.Location()
		if !ok {
			continue
		}
		b.Extend(p)
		found = true
	}
	return b, found
}

// Encode renders the dataset as two-space indented JSON.
func (d *Dataset) Encode() ([]byte, error) {
	features := d.Features
	if features == nil {
		features = []*Feature{}
	}
	featuresRaw, err := json.Marshal(features)
	if err != nil {
		return nil, eris.Wrap(err, "model: encode features")
	}

	members := d.members
	if members == nil {
		members = NewDataset().members
	}

	out := orderedmap.New[string, json.RawMessage]()
	for pair := members.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	out.Set(memberFeatures, featuresRaw)

	if d.Attributes != nil && (d.Attributes.Len() > 0 || hasMember(members, memberAttributes)) {
		attrsRaw, err := json.Marshal(d.Attributes)
		if err != nil {
			return nil, eris.Wrap(err, "model: encode dataset attributes")
		}
		out.Set(memberAttributes, attrsRaw)
	}

	compact, err := json.Marshal(out)
	if err != nil {
		return nil, eris.Wrap(err, "model: encode dataset")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, eris.Wrap(err, "model: indent dataset")
	}
	return buf.Bytes(), nil
}

func hasMember(m *orderedmap.OrderedMap[string, json.RawMessage], key string) bool {
	_, ok := m.Get(key)
	return ok
}
