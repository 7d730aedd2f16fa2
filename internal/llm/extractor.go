// Package llm - extractor.go provides schema-driven prompt construction for structured extraction.
package llm

import (
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "Resume")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "\"string\""
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Use empty strings and empty arrays for anything the text does not contain.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// CVSchema returns the extraction schema for resumes. Description is left
// empty; callers supply the instruction preamble.
func CVSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "Resume",
		Fields: []SchemaField{
			{
				Name:        "personalInfo",
				Type:        `{"firstName": "string", "lastName": "string", "email": "string", "phone": "string", "location": "string", "profession": "string", "website": "string", "summary": "string"}`,
				Description: "Contact details and headline of the candidate",
				Required:    true,
			},
			{
				Name:        "experiences",
				Type:        `[{"jobTitle": "string", "company": "string", "location": "string", "startDate": "string", "endDate": "string", "current": boolean, "description": "string"}]`,
				Description: "Work history, most recent first; dates as written in the resume",
				Required:    true,
			},
			{
				Name:        "education",
				Type:        `[{"school": "string", "degree": "string", "field": "string", "location": "string", "startDate": "string", "endDate": "string", "current": boolean, "description": "string"}]`,
				Description: "Degrees, diplomas and certifications from schools",
				Required:    true,
			},
			{
				Name:        "skills",
				Type:        `["string"]`,
				Description: "Individual skills, one per entry",
				Required:    true,
			},
			{
				Name:        "languages",
				Type:        `[{"language": "string", "level": "string"}]`,
				Description: "Spoken languages with proficiency if stated",
				Required:    false,
			},
		},
	}
}

// CVResponseSchema is the Gemini response schema matching CVSchema
func CVResponseSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	boolean := &genai.Schema{Type: genai.TypeBoolean}

	object := func(fields ...string) *genai.Schema {
		props := make(map[string]*genai.Schema, len(fields))
		for _, f := range fields {
			if f == "current" {
				props[f] = boolean
				continue
			}
			props[f] = str
		}
		return &genai.Schema{Type: genai.TypeObject, Properties: props}
	}
	list := func(items *genai.Schema) *genai.Schema {
		return &genai.Schema{Type: genai.TypeArray, Items: items}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"personalInfo": object("firstName", "lastName", "email", "phone", "location", "profession", "website", "summary"),
			"experiences":  list(object("jobTitle", "company", "location", "startDate", "endDate", "current", "description")),
			"education":    list(object("school", "degree", "field", "location", "startDate", "endDate", "current", "description")),
			"skills":       list(str),
			"languages":    list(object("language", "level")),
		},
	}
}
