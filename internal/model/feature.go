// Package model defines the GeoJSON records flowing through the cleaning pipeline.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Properties is the ordered tag mapping of a feature. Values are strings in
// practice; anything else is carried through untouched, numbers as
// json.Number.
type Properties = orderedmap.OrderedMap[string, any]

// Feature is one point-of-interest record. Members other than properties
// are kept as raw JSON so the record round-trips with its original shape.
type Feature struct {
	members    *orderedmap.OrderedMap[string, json.RawMessage]
	Properties *Properties
}

// NewFeature builds a feature from alternating key/value tag pairs.
func NewFeature(id string, tags ...string) *Feature {
	members := orderedmap.New[string, json.RawMessage]()
	members.Set("type", json.RawMessage(`"Feature"`))
	if id != "" {
		members.Set("id", json.RawMessage(strconv.Quote(id)))
	}
	f := &Feature{members: members, Properties: orderedmap.New[string, any]()}
	for i := 0; i+1 < len(tags); i += 2 {
		f.Properties.Set(tags[i], tags[i+1])
	}
	return f
}

// ID returns the feature identifier. Numeric ids are returned as written.
func (f *Feature) ID() string {
	if f.members == nil {
		return ""
	}
	raw, ok := f.members.Get("id")
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Tag returns the string value of key. Non-string values report ok=false.
func (f *Feature) Tag(key string) (string, bool) {
	v, ok := f.Properties.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Raw returns the untyped value of key.
func (f *Feature) Raw(key string) (any, bool) {
	return f.Properties.Get(key)
}

// HasTag reports whether key is present, whatever its value.
func (f *Feature) HasTag(key string) bool {
	_, ok := f.Properties.Get(key)
	return ok
}

// SetTag sets key, keeping its position if it already exists.
func (f *Feature) SetTag(key, value string) {
	f.Properties.Set(key, value)
}

// DeleteTag removes key if present.
func (f *Feature) DeleteTag(key string) {
	f.Properties.Delete(key)
}

// Keys returns the tag keys in order.
func (f *Feature) Keys() []string {
	keys := make([]string, 0, f.Properties.Len())
	for pair := f.Properties.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Location decodes a Point geometry. ok is false for missing or non-point
// geometries.
func (f *Feature) Location() (*geom.Point, bool) {
	if f.members == nil {
		return nil, false
	}
	raw, ok := f.members.Get("geometry")
	if !ok || isNull(raw) {
		return nil, false
	}
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, false
	}
	t, err := g.Decode()
	if err != nil {
		return nil, false
	}
	p, ok := t.(*geom.Point)
	return p, ok
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Feature) UnmarshalJSON(data []byte) error {
	members := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, members); err != nil {
		return eris.Wrap(err, "model: decode feature")
	}
	props := orderedmap.New[string, any]()
	if raw, ok := members.Get("properties"); ok && !isNull(raw) {
		values := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(raw, values); err != nil {
			return eris.Wrap(err, "model: decode feature properties")
		}
		for pair := values.Oldest(); pair != nil; pair = pair.Next() {
			v, err := decodeValue(pair.Value)
			if err != nil {
				return eris.Wrapf(err, "model: decode property %s", pair.Key)
			}
			props.Set(pair.Key, v)
		}
	}
	f.members = members
	f.Properties = props
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f *Feature) MarshalJSON() ([]byte, error) {
	props := f.Properties
	if props == nil {
		props = orderedmap.New[string, any]()
	}
	propsRaw, err := json.Marshal(props)
	if err != nil {
		return nil, eris.Wrap(err, "model: encode feature properties")
	}

	members := f.members
	if members == nil {
		members = orderedmap.New[string, json.RawMessage]()
		members.Set("type", json.RawMessage(`"Feature"`))
	}

	out := orderedmap.New[string, json.RawMessage]()
	for pair := members.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "properties" {
			out.Set(pair.Key, propsRaw)
			continue
		}
		out.Set(pair.Key, pair.Value)
	}
	if _, ok := members.Get("properties"); !ok {
		out.Set("properties", propsRaw)
	}
	return json.Marshal(out)
}

// decodeValue decodes a property value keeping numbers as json.Number, so
// they are written back exactly as read.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
