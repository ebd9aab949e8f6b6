// Package catalog consumes the stream-selection catalog: which streams are
// selected, which fields to include at emission time, and the discover-mode
// construction of the catalog itself. Schemas are treated as opaque JSON;
// only selection metadata is interpreted.
package catalog

import (
	"github.com/ajitpratap0/formtap/pkg/jsonutil"
	"github.com/ajitpratap0/formtap/pkg/streams"
)

// Metadata is one breadcrumb-scoped metadata entry. An empty breadcrumb
// addresses the stream itself; ["properties", <field>] addresses a field.
type Metadata struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Entry is one stream's catalog entry.
type Entry struct {
	Stream        string                 `json:"stream"`
	TapStreamID   string                 `json:"tap_stream_id"`
	Schema        map[string]interface{} `json:"schema"`
	KeyProperties []string               `json:"key_properties"`
	Metadata      []Metadata             `json:"metadata"`
}

// Catalog is the full selection input.
type Catalog struct {
	Streams []Entry `json:"streams"`
}

// Parse decodes a catalog from its JSON form.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := jsonutil.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// streamMetadata returns the empty-breadcrumb metadata map of an entry.
func (e *Entry) streamMetadata() map[string]interface{} {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) == 0 {
			return m.Metadata
		}
	}
	return nil
}

// Selected reports whether the stream-level metadata marks this entry
// selected.
func (e *Entry) Selected() bool {
	m := e.streamMetadata()
	if m == nil {
		return false
	}
	selected, _ := m["selected"].(bool)
	return selected
}

// SelectedStreams returns the set of selected stream ids.
func (c *Catalog) SelectedStreams() map[string]bool {
	out := make(map[string]bool)
	for i := range c.Streams {
		if c.Streams[i].Selected() {
			out[c.Streams[i].TapStreamID] = true
		}
	}
	return out
}

// Entry returns the catalog entry for a stream id.
func (c *Catalog) Entry(stream string) (*Entry, bool) {
	for i := range c.Streams {
		if c.Streams[i].TapStreamID == stream {
			return &c.Streams[i], true
		}
	}
	return nil, false
}

// FieldFilter decides per-field inclusion for one stream at emission time.
type FieldFilter struct {
	// nil means no field metadata was supplied: include everything.
	include map[string]bool
}

// Filter returns a copy of the record restricted to included fields.
func (f *FieldFilter) Filter(record map[string]interface{}) map[string]interface{} {
	if f == nil || f.include == nil {
		return record
	}
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if f.include[k] {
			out[k] = v
		}
	}
	return out
}

// FieldFilter builds the per-field inclusion set from the entry's field
// metadata: fields marked automatic are always included, fields marked
// selected are included, fields explicitly deselected are dropped.
func (e *Entry) FieldFilter() *FieldFilter {
	var include map[string]bool
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 2 || m.Breadcrumb[0] != "properties" {
			continue
		}
		if include == nil {
			include = make(map[string]bool)
		}
		field := m.Breadcrumb[1]
		if inclusion, _ := m.Metadata["inclusion"].(string); inclusion == "automatic" {
			include[field] = true
			continue
		}
		if selected, ok := m.Metadata["selected"].(bool); ok {
			include[field] = selected
			continue
		}
		// No explicit signal: fields default to included.
		include[field] = true
	}
	return &FieldFilter{include: include}
}

// Discover builds the static catalog for the registry: schema, key
// properties, and standard metadata with automatic inclusion for key and
// replication-key fields. Nothing is selected by default.
func Discover(reg *streams.Registry) *Catalog {
	c := &Catalog{}
	for _, id := range reg.IDs() {
		d, _ := reg.Get(id)
		schema := schemaFor(id)

		automatic := make(map[string]bool, len(d.KeyProperties)+1)
		for _, k := range d.KeyProperties {
			automatic[k] = true
		}
		if d.ReplicationKey != "" {
			automatic[d.ReplicationKey] = true
		}

		md := []Metadata{{
			Breadcrumb: []string{},
			Metadata: map[string]interface{}{
				"inclusion":                 "available",
				"table-key-properties":      d.KeyProperties,
				"forced-replication-method": d.ReplicationMethod,
			},
		}}
		if d.ReplicationKey != "" {
			md[0].Metadata["valid-replication-keys"] = []string{d.ReplicationKey}
		}

		props, _ := schema["properties"].(map[string]interface{})
		for field := range props {
			inclusion := "available"
			if automatic[field] {
				inclusion = "automatic"
			}
			md = append(md, Metadata{
				Breadcrumb: []string{"properties", field},
				Metadata:   map[string]interface{}{"inclusion": inclusion},
			})
		}

		c.Streams = append(c.Streams, Entry{
			Stream:        id,
			TapStreamID:   id,
			Schema:        schema,
			KeyProperties: d.KeyProperties,
			Metadata:      md,
		})
	}
	return c
}
