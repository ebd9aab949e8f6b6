// Package streams defines the fixed stream registry for the forms API:
// which streams exist, how they replicate, how they nest, and how raw API
// items are shaped into records. The registry is immutable after
// construction and is passed explicitly to the sync engine.
package streams

import (
	"fmt"

	"github.com/ajitpratap0/formtap/pkg/jsonutil"
)

// Replication methods.
const (
	ReplicationIncremental = "INCREMENTAL"
	ReplicationFullTable   = "FULL_TABLE"
)

// Stream ids.
const (
	StreamForms     = "forms"
	StreamQuestions = "questions"
	StreamLandings  = "landings"
	StreamAnswers   = "answers"
)

// Context carries the scope an enrichment function runs in: the form being
// synced and, for embedded child items, the parent record.
type Context struct {
	FormID string
	Parent map[string]interface{}
}

// EnrichFunc shapes one raw API item into an output record. Implementations
// are pure: they never mutate the input item.
type EnrichFunc func(item map[string]interface{}, ctx Context) map[string]interface{}

// Descriptor is the static definition of one stream.
type Descriptor struct {
	ID                string
	ReplicationMethod string
	ReplicationKey    string
	KeyProperties     []string
	Parent            string
	Children          []string

	// Endpoint is the API path; form-scoped streams carry a single %s
	// placeholder for the form id.
	Endpoint string
	// DataKey names the response field holding the raw item array.
	DataKey string
	// ChildDataKey names the field inside a parent item that embeds child
	// items, empty when the stream has no embedded children.
	ChildDataKey string

	// FormScoped streams sync once per form id; the forms stream itself
	// is global.
	FormScoped bool
	// PageNumbered streams paginate by page number instead of cursor
	// token (only the forms-list endpoint works this way).
	PageNumbered bool

	// Params are fixed query parameters sent on every page request.
	Params map[string]string

	Enrich EnrichFunc
}

// EndpointFor resolves the endpoint path for a form id.
func (d *Descriptor) EndpointFor(formID string) string {
	if d.FormScoped {
		return fmt.Sprintf(d.Endpoint, formID)
	}
	return d.Endpoint
}

// Registry is the immutable stream catalog, constructed once at startup.
type Registry struct {
	streams map[string]*Descriptor
	order   []string
}

// NewRegistry builds the registry for the forms domain.
func NewRegistry() *Registry {
	descriptors := []*Descriptor{
		{
			ID:                StreamForms,
			ReplicationMethod: ReplicationIncremental,
			ReplicationKey:    "last_updated_at",
			KeyProperties:     []string{"id"},
			Endpoint:          "forms",
			DataKey:           "items",
			PageNumbered:      true,
			Enrich:            enrichForm,
		},
		{
			ID:                StreamQuestions,
			ReplicationMethod: ReplicationFullTable,
			KeyProperties:     []string{"form_id", "question_id"},
			Endpoint:          "forms/%s",
			DataKey:           "fields",
			FormScoped:        true,
			Enrich:            enrichQuestion,
		},
		{
			ID:                StreamLandings,
			ReplicationMethod: ReplicationIncremental,
			ReplicationKey:    "landed_at",
			KeyProperties:     []string{"landing_id"},
			Children:          []string{StreamAnswers},
			Endpoint:          "forms/%s/responses",
			DataKey:           "items",
			ChildDataKey:      "answers",
			FormScoped:        true,
			Params:            map[string]string{"completed": "true"},
			Enrich:            enrichLanding,
		},
		{
			ID:                StreamAnswers,
			ReplicationMethod: ReplicationIncremental,
			ReplicationKey:    "landed_at",
			KeyProperties:     []string{"landing_id", "question_id"},
			Parent:            StreamLandings,
			FormScoped:        true,
			Enrich:            enrichAnswer,
		},
	}

	r := &Registry{streams: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.streams[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Get returns the descriptor for a stream id.
func (r *Registry) Get(id string) (*Descriptor, bool) {
	d, ok := r.streams[id]
	return d, ok
}

// IDs returns all stream ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Children implements state.Hierarchy.
func (r *Registry) Children(stream string) []string {
	if d, ok := r.streams[stream]; ok {
		return d.Children
	}
	return nil
}

// ReplicationKey implements state.Hierarchy.
func (r *Registry) ReplicationKey(stream string) string {
	if d, ok := r.streams[stream]; ok {
		return d.ReplicationKey
	}
	return ""
}

// enrichForm passes form-list items through unchanged.
func enrichForm(item map[string]interface{}, _ Context) map[string]interface{} {
	out := make(map[string]interface{}, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// enrichQuestion shapes one form field definition into a question record,
// expanding group fields into a sub_questions list.
func enrichQuestion(item map[string]interface{}, ctx Context) map[string]interface{} {
	out := map[string]interface{}{
		"form_id":     ctx.FormID,
		"question_id": item["id"],
		"title":       item["title"],
		"ref":         item["ref"],
		"type":        item["type"],
	}
	if subs := SubQuestions(item); len(subs) > 0 {
		out["sub_questions"] = subs
	}
	return out
}

// SubQuestions collects id/title/ref of each field nested inside a
// group-type field. Non-group fields have none.
func SubQuestions(field map[string]interface{}) []map[string]interface{} {
	if field["type"] != "group" {
		return nil
	}
	props, ok := field["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	nested, ok := props["fields"].([]interface{})
	if !ok {
		return nil
	}

	subs := make([]map[string]interface{}, 0, len(nested))
	for _, raw := range nested {
		sub, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		subs = append(subs, map[string]interface{}{
			"question_id": sub["id"],
			"title":       sub["title"],
			"ref":         sub["ref"],
		})
	}
	return subs
}

// landingMetadataFields are the metadata subfields hoisted to the top of a
// landing record.
var landingMetadataFields = []string{"user_agent", "platform", "referer", "network_id", "browser"}

// enrichLanding flattens a submission's metadata block, stringifies hidden
// field values, and stamps the owning form id.
func enrichLanding(item map[string]interface{}, ctx Context) map[string]interface{} {
	out := map[string]interface{}{
		"landing_id":   item["landing_id"],
		"token":        item["token"],
		"landed_at":    item["landed_at"],
		"submitted_at": item["submitted_at"],
		"_sdc_form_id": ctx.FormID,
	}
	if meta, ok := item["metadata"].(map[string]interface{}); ok {
		for _, f := range landingMetadataFields {
			if v, ok := meta[f]; ok {
				out[f] = v
			}
		}
	}
	if hidden, ok := item["hidden"]; ok {
		out["hidden"] = jsonutil.MarshalString(hidden)
	}
	return out
}

// enrichAnswer shapes one embedded answer into its own record, normalizing
// the polymorphic answer value: composite values (choice, choices, payment)
// become JSON strings, numeric and boolean scalars become plain strings,
// and everything else passes through.
func enrichAnswer(item map[string]interface{}, ctx Context) map[string]interface{} {
	dataType, _ := item["type"].(string)

	var value interface{} = item[dataType]
	switch dataType {
	case "choice", "choices", "payment":
		value = jsonutil.MarshalString(item[dataType])
	case "number", "boolean":
		value = fmt.Sprintf("%v", item[dataType])
	}

	out := map[string]interface{}{
		"landing_id":   ctx.Parent["landing_id"],
		"landed_at":    ctx.Parent["landed_at"],
		"_sdc_form_id": ctx.FormID,
		"data_type":    dataType,
		"answer":       value,
	}
	if field, ok := item["field"].(map[string]interface{}); ok {
		out["question_id"] = field["id"]
		out["type"] = field["type"]
		out["ref"] = field["ref"]
	}
	return out
}
