package searchobjects

import (
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/validation"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"objectType"},
		Properties: map[string]validation.Property{
			"objectType": {
				Type:        "string",
				Description: "contacts, bookings, mock_exams or a raw HubSpot object type id",
				MinLength:   validation.IntPtr(1),
			},
			"filters": {
				Type:        "array",
				Description: "Filters combined with AND",
				MaxItems:    validation.IntPtr(6),
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"propertyName", "operator"},
					Properties: map[string]validation.Property{
						"propertyName": {Type: "string", MinLength: validation.IntPtr(1)},
						"operator":     {Type: "string", Enum: hubspot.Operators()},
						"values":       {Type: "array"},
					},
				},
			},
			"properties": {
				Type:        "array",
				Description: "Properties to return",
				Items:       &validation.Property{Type: "string"},
			},
			"sorts": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"propertyName"},
					Properties: map[string]validation.Property{
						"propertyName": {Type: "string"},
						"direction":    {Type: "string", Enum: []string{"ASCENDING", "DESCENDING"}},
					},
				},
			},
			"limit": {
				Type:    "integer",
				Minimum: validation.FloatPtr(1),
				Maximum: validation.FloatPtr(100),
			},
			"after": {
				Type:        []string{"string", "integer"},
				Description: "Paging cursor from a previous nextAfter",
			},
		},
		AdditionalProperties: true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"results", "total", "nextAfter"},
		Properties: map[string]validation.Property{
			"results": {
				Type: "array",
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"id", "properties"},
				},
			},
			"total":     {Type: "integer"},
			"nextAfter": {Type: "string", Description: "Empty on the last page"},
		},
		AdditionalProperties: false,
	}
}
