package streams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryTopology(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{StreamForms, StreamQuestions, StreamLandings, StreamAnswers}, r.IDs())
	assert.Equal(t, []string{StreamAnswers}, r.Children(StreamLandings))
	assert.Empty(t, r.Children(StreamAnswers))
	assert.Equal(t, "last_updated_at", r.ReplicationKey(StreamForms))
	assert.Equal(t, "landed_at", r.ReplicationKey(StreamAnswers))

	landings, ok := r.Get(StreamLandings)
	require.True(t, ok)
	assert.Equal(t, "answers", landings.ChildDataKey)
	assert.True(t, landings.FormScoped)

	forms, ok := r.Get(StreamForms)
	require.True(t, ok)
	assert.True(t, forms.PageNumbered)
	assert.False(t, forms.FormScoped)
}

func TestEndpointFor(t *testing.T) {
	r := NewRegistry()

	landings, _ := r.Get(StreamLandings)
	assert.Equal(t, "forms/abc123/responses", landings.EndpointFor("abc123"))

	forms, _ := r.Get(StreamForms)
	assert.Equal(t, "forms", forms.EndpointFor("ignored"))
}

func TestSubQuestions(t *testing.T) {
	tests := []struct {
		name  string
		field map[string]interface{}
		want  int
	}{
		{
			name: "group field expands nested fields",
			field: map[string]interface{}{
				"type": "group",
				"properties": map[string]interface{}{
					"fields": []interface{}{
						map[string]interface{}{"id": "q1", "title": "First", "ref": "r1"},
						map[string]interface{}{"id": "q2", "title": "Second", "ref": "r2"},
					},
				},
			},
			want: 2,
		},
		{
			name:  "non group field has none",
			field: map[string]interface{}{"type": "short_text"},
			want:  0,
		},
		{
			name:  "group without properties has none",
			field: map[string]interface{}{"type": "group"},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := SubQuestions(tt.field)
			assert.Len(t, subs, tt.want)
			if tt.want > 0 {
				assert.Equal(t, "q1", subs[0]["question_id"])
				assert.Equal(t, "First", subs[0]["title"])
				assert.Equal(t, "r1", subs[0]["ref"])
			}
		})
	}
}

func TestEnrichQuestion(t *testing.T) {
	r := NewRegistry()
	questions, _ := r.Get(StreamQuestions)

	field := map[string]interface{}{
		"id":    "fld1",
		"title": "Your name",
		"ref":   "ref1",
		"type":  "short_text",
	}
	rec := questions.Enrich(field, Context{FormID: "form1"})

	assert.Equal(t, "form1", rec["form_id"])
	assert.Equal(t, "fld1", rec["question_id"])
	assert.Equal(t, "Your name", rec["title"])
	_, hasSubs := rec["sub_questions"]
	assert.False(t, hasSubs)
}

func TestEnrichLanding(t *testing.T) {
	r := NewRegistry()
	landings, _ := r.Get(StreamLandings)

	item := map[string]interface{}{
		"landing_id":   "l1",
		"token":        "tok1",
		"landed_at":    "2022-01-01T00:00:00Z",
		"submitted_at": "2022-01-01T00:01:00Z",
		"metadata": map[string]interface{}{
			"user_agent": "Mozilla/5.0",
			"platform":   "other",
			"referer":    "https://example.com",
			"network_id": "n1",
			"browser":    "default",
		},
		"hidden": map[string]interface{}{"campaign": "spring"},
	}
	rec := landings.Enrich(item, Context{FormID: "form1"})

	assert.Equal(t, "form1", rec["_sdc_form_id"])
	assert.Equal(t, "l1", rec["landing_id"])
	assert.Equal(t, "Mozilla/5.0", rec["user_agent"])
	assert.Equal(t, "other", rec["platform"])
	assert.JSONEq(t, `{"campaign":"spring"}`, rec["hidden"].(string))

	// metadata stays flattened, never nested
	_, hasMeta := rec["metadata"]
	assert.False(t, hasMeta)
}

func TestEnrichAnswer(t *testing.T) {
	r := NewRegistry()
	answers, _ := r.Get(StreamAnswers)

	parent := map[string]interface{}{
		"landing_id": "l1",
		"landed_at":  "2022-01-01T00:00:00Z",
	}
	ctx := Context{FormID: "form1", Parent: parent}

	tests := []struct {
		name string
		item map[string]interface{}
		want interface{}
	}{
		{
			name: "text passes through",
			item: map[string]interface{}{
				"type":  "text",
				"text":  "hello",
				"field": map[string]interface{}{"id": "q1", "type": "short_text", "ref": "r1"},
			},
			want: "hello",
		},
		{
			name: "number becomes string",
			item: map[string]interface{}{
				"type":   "number",
				"number": float64(42),
				"field":  map[string]interface{}{"id": "q2", "type": "number", "ref": "r2"},
			},
			want: "42",
		},
		{
			name: "boolean becomes string",
			item: map[string]interface{}{
				"type":    "boolean",
				"boolean": true,
				"field":   map[string]interface{}{"id": "q3", "type": "yes_no", "ref": "r3"},
			},
			want: "true",
		},
		{
			name: "choice becomes JSON string",
			item: map[string]interface{}{
				"type":   "choice",
				"choice": map[string]interface{}{"label": "Red"},
				"field":  map[string]interface{}{"id": "q4", "type": "multiple_choice", "ref": "r4"},
			},
			want: `{"label":"Red"}`,
		},
		{
			name: "choices becomes JSON string",
			item: map[string]interface{}{
				"type":    "choices",
				"choices": map[string]interface{}{"labels": []interface{}{"Red", "Blue"}},
				"field":   map[string]interface{}{"id": "q5", "type": "multiple_choice", "ref": "r5"},
			},
			want: `{"labels":["Red","Blue"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := answers.Enrich(tt.item, ctx)

			assert.Equal(t, "l1", rec["landing_id"])
			assert.Equal(t, "2022-01-01T00:00:00Z", rec["landed_at"])
			assert.Equal(t, "form1", rec["_sdc_form_id"])
			assert.Equal(t, tt.item["field"].(map[string]interface{})["id"], rec["question_id"])

			if s, ok := tt.want.(string); ok && s != "" && (s[0] == '{' || s[0] == '[') {
				assert.JSONEq(t, s, rec["answer"].(string))
			} else {
				assert.Equal(t, tt.want, rec["answer"])
			}
		})
	}
}
