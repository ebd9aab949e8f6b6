package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/streams"
)

const sampleCatalog = `{
  "streams": [
    {
      "stream": "forms",
      "tap_stream_id": "forms",
      "schema": {"type": "object", "properties": {"id": {"type": "string"}}},
      "key_properties": ["id"],
      "metadata": [
        {"breadcrumb": [], "metadata": {"selected": true}},
        {"breadcrumb": ["properties", "id"], "metadata": {"inclusion": "automatic"}},
        {"breadcrumb": ["properties", "title"], "metadata": {"selected": true}},
        {"breadcrumb": ["properties", "_links"], "metadata": {"selected": false}}
      ]
    },
    {
      "stream": "landings",
      "tap_stream_id": "landings",
      "schema": {"type": "object"},
      "key_properties": ["landing_id"],
      "metadata": [
        {"breadcrumb": [], "metadata": {"selected": false}}
      ]
    },
    {
      "stream": "answers",
      "tap_stream_id": "answers",
      "schema": {"type": "object"},
      "key_properties": ["landing_id", "question_id"],
      "metadata": []
    }
  ]
}`

func TestSelectedStreams(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	selected := c.SelectedStreams()
	assert.True(t, selected["forms"])
	assert.False(t, selected["landings"], "explicitly deselected")
	assert.False(t, selected["answers"], "no metadata means not selected")
}

func TestFieldFilter(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	entry, ok := c.Entry("forms")
	require.True(t, ok)

	record := map[string]interface{}{
		"id":     "f1",
		"title":  "My form",
		"_links": map[string]interface{}{"display": "https://example.com"},
	}
	filtered := entry.FieldFilter().Filter(record)

	assert.Equal(t, "f1", filtered["id"], "automatic fields always pass")
	assert.Equal(t, "My form", filtered["title"], "selected fields pass")
	_, hasLinks := filtered["_links"]
	assert.False(t, hasLinks, "deselected fields are dropped")
}

func TestFieldFilterNoMetadataPassesEverything(t *testing.T) {
	c, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)

	entry, ok := c.Entry("answers")
	require.True(t, ok)

	record := map[string]interface{}{"landing_id": "l1", "answer": "x"}
	assert.Equal(t, record, entry.FieldFilter().Filter(record))
}

func TestDiscover(t *testing.T) {
	c := Discover(streams.NewRegistry())
	require.Len(t, c.Streams, 4)

	byID := make(map[string]*Entry)
	for i := range c.Streams {
		byID[c.Streams[i].TapStreamID] = &c.Streams[i]
	}

	forms := byID["forms"]
	require.NotNil(t, forms)
	assert.Equal(t, []string{"id"}, forms.KeyProperties)
	assert.False(t, forms.Selected(), "discover selects nothing by default")

	md := forms.streamMetadata()
	require.NotNil(t, md)
	assert.Equal(t, "INCREMENTAL", md["forced-replication-method"])
	assert.Equal(t, []string{"last_updated_at"}, md["valid-replication-keys"])

	// replication key and primary key fields are automatic
	var inclusion string
	for _, m := range forms.Metadata {
		if len(m.Breadcrumb) == 2 && m.Breadcrumb[1] == "last_updated_at" {
			inclusion, _ = m.Metadata["inclusion"].(string)
		}
	}
	assert.Equal(t, "automatic", inclusion)

	questions := byID["questions"]
	require.NotNil(t, questions)
	qmd := questions.streamMetadata()
	assert.Equal(t, "FULL_TABLE", qmd["forced-replication-method"])
	_, hasRepKeys := qmd["valid-replication-keys"]
	assert.False(t, hasRepKeys)
}
