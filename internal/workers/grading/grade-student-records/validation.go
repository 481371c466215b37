package gradestudentrecords

import "student-grading/internal/common/validation"

// IDs must be strings so leading zeros survive the trip through the engine.
var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"records": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"name":   {"type": ["string", "null"]},
					"id":     {"type": "string"},
					"age":    {"type": ["string", "number", "null"]},
					"grade1": {"type": ["string", "number", "null"]},
					"grade2": {"type": ["string", "number", "null"]},
					"grade3": {"type": ["string", "number", "null"]}
				}
			}
		},
		"inputPath":     {"type": "string", "minLength": 1},
		"outputPath":    {"type": "string", "minLength": 1},
		"passThreshold": {"type": "number", "minimum": 0}
	},
	"anyOf": [
		{"required": ["records"]},
		{"required": ["inputPath"]}
	]
}`)
