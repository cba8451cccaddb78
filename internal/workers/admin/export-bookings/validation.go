package exportbookings

import "mockexam-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"bookingIds": {
				Type:        "array",
				Description: "Selected booking record ids; duplicates are dropped",
				MaxItems:    validation.IntPtr(5000),
				Items:       &validation.Property{Type: []string{"string", "integer"}},
			},
			"mockExamId": {
				Type:        []string{"string", "integer"},
				Description: "Export every booking of this exam when no selection is given",
			},
			"excludeCancelled": {
				Type:    "boolean",
				Default: false,
			},
			"recipientEmail": {
				Type:        "string",
				Description: "Send the CSV through SES when set",
			},
		},
		AdditionalProperties: true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"exportId", "rowCount", "csv", "fileName", "delivered"},
		Properties: map[string]validation.Property{
			"exportId":  {Type: "string", MinLength: validation.IntPtr(1)},
			"rowCount":  {Type: "integer", Minimum: validation.FloatPtr(0)},
			"csv":       {Type: "string"},
			"fileName":  {Type: "string", Pattern: strPtr(`^bookings-export-.+\.csv$`)},
			"delivered": {Type: "boolean"},
		},
		AdditionalProperties: false,
	}
}

func strPtr(s string) *string { return &s }
