// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

var stringArray = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

var classificationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "string"},
					"classification": map[string]any{
						"type": "string",
						"enum": []string{"full_text", "abstract_with_pdf", "paywall", "non_academic"},
					},
					"confidence": map[string]any{
						"type":    "number",
						"minimum": 0.0,
						"maximum": 1.0,
					},
					"pdf_url":   map[string]any{"type": "string"},
					"title":     map[string]any{"type": "string"},
					"authors":   stringArray,
					"reasoning": map[string]any{"type": "string"},
				},
				"required":             []string{"id", "classification", "confidence", "pdf_url", "title", "authors", "reasoning"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"results"},
	"additionalProperties": false,
}

var metadataSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"documents": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":       map[string]any{"type": "string"},
					"title":    map[string]any{"type": "string"},
					"authors":  stringArray,
					"year":     map[string]any{"type": "integer"},
					"doi":      map[string]any{"type": "string"},
					"abstract": map[string]any{"type": "string"},
				},
				"required":             []string{"id", "title", "authors", "year", "doi", "abstract"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"documents"},
	"additionalProperties": false,
}
