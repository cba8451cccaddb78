package verifybookingcounter

import "mockexam-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"mockExamId"},
		Properties: map[string]validation.Property{
			"mockExamId": {
				Type:        []string{"string", "integer"},
				Description: "HubSpot record id of the mock exam",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(64),
			},
			"alertOnDrift": {
				Type:        "boolean",
				Description: "Publish an SNS alert when the counters disagree",
			},
		},
		AdditionalProperties: true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Required: []string{
			"checkId", "mockExamId", "redisCount", "hubspotCount",
			"drift", "inSync", "redisKeyPresent", "checkedAt",
		},
		Properties: map[string]validation.Property{
			"checkId":         {Type: "string", Description: "Id of the audit record"},
			"mockExamId":      {Type: "string"},
			"redisCount":      {Type: "integer", Description: "Value of the Redis booking counter"},
			"hubspotCount":    {Type: "integer", Description: "Mock exam total_bookings in HubSpot"},
			"drift":           {Type: "integer", Description: "redisCount minus hubspotCount"},
			"inSync":          {Type: "boolean"},
			"redisKeyPresent": {Type: "boolean", Description: "False when the counter key was missing"},
			"checkedAt":       {Type: "string", Format: "date-time"},
			"alertPublished":  {Type: "boolean"},
		},
		AdditionalProperties: false,
	}
}
