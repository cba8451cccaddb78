package transformlogincredits

import "mockexam-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"loginResponse": {
				Description: "Login response carrying identity and credit balances; any shape is accepted",
			},
			"cacheResult": {
				Type:        "boolean",
				Description: "Write the mapping to the eligibility cache",
			},
		},
		AdditionalProperties: true,
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"creditEligibility", "creditDataAvailable", "eligibleCategories", "cached"},
		Properties: map[string]validation.Property{
			"creditEligibility": {
				Type:        "object",
				Description: "Eligibility record per exam category",
			},
			"creditDataAvailable": {
				Type:        "boolean",
				Description: "Whether the login response carried credit data",
			},
			"eligibleCategories": {
				Type:        "array",
				Description: "Sorted category names the student can book",
				Items:       &validation.Property{Type: "string"},
			},
			"cached": {
				Type:        "boolean",
				Description: "Whether the mapping was written to Redis",
			},
		},
		AdditionalProperties: false,
	}
}
