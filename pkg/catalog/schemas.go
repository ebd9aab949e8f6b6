package catalog

// Schema construction for discover mode. Types are kept permissive
// (nullable strings) because the upstream API omits fields freely.

func stringField() map[string]interface{} {
	return map[string]interface{}{"type": []interface{}{"null", "string"}}
}

func datetimeField() map[string]interface{} {
	return map[string]interface{}{
		"type":   []interface{}{"null", "string"},
		"format": "date-time",
	}
}

func objectSchema(props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       []interface{}{"null", "object"},
		"properties": props,
	}
}

func schemaFor(stream string) map[string]interface{} {
	switch stream {
	case "forms":
		return objectSchema(map[string]interface{}{
			"id":              stringField(),
			"title":           stringField(),
			"type":            stringField(),
			"last_updated_at": datetimeField(),
			"created_at":      datetimeField(),
			"_links":          objectSchema(map[string]interface{}{"display": stringField()}),
		})
	case "questions":
		return objectSchema(map[string]interface{}{
			"form_id":     stringField(),
			"question_id": stringField(),
			"title":       stringField(),
			"ref":         stringField(),
			"type":        stringField(),
			"sub_questions": map[string]interface{}{
				"type": []interface{}{"null", "array"},
				"items": objectSchema(map[string]interface{}{
					"question_id": stringField(),
					"title":       stringField(),
					"ref":         stringField(),
				}),
			},
		})
	case "landings":
		return objectSchema(map[string]interface{}{
			"landing_id":   stringField(),
			"token":        stringField(),
			"landed_at":    datetimeField(),
			"submitted_at": datetimeField(),
			"user_agent":   stringField(),
			"platform":     stringField(),
			"referer":      stringField(),
			"network_id":   stringField(),
			"browser":      stringField(),
			"hidden":       stringField(),
			"_sdc_form_id": stringField(),
		})
	case "answers":
		return objectSchema(map[string]interface{}{
			"landing_id":   stringField(),
			"question_id":  stringField(),
			"landed_at":    datetimeField(),
			"type":         stringField(),
			"ref":          stringField(),
			"data_type":    stringField(),
			"answer":       stringField(),
			"_sdc_form_id": stringField(),
		})
	}
	return objectSchema(map[string]interface{}{})
}
