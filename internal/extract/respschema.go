package extract

import (
	"google.golang.org/genai"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// expenseSchema constrains the model's JSON output to the normalized expense
// shape. "Required" only nudges the model; consumers still treat every field
// as absent-or-wrong.
var expenseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"merchant": {Type: genai.TypeString},
		"datetime": {Type: genai.TypeString, Format: "date-time"},
		"currency": {Type: genai.TypeString},
		"subtotal": {Type: genai.TypeNumber},
		"tax":      {Type: genai.TypeNumber},
		"tip":      {Type: genai.TypeNumber},
		"total":    {Type: genai.TypeNumber},
		"category": {Type: genai.TypeString, Enum: schema.Categories},
		"line_items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"desc":  {Type: genai.TypeString},
					"qty":   {Type: genai.TypeNumber},
					"price": {Type: genai.TypeNumber},
				},
				Required: []string{"desc", "price"},
			},
		},
	},
	Required: []string{"merchant", "total", "category"},
}
