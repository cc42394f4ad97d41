package extract

import (
	"testing"
)

func TestFieldsFromRaw(t *testing.T) {
	raw := map[string]interface{}{
		"merchant": "Blue Bottle",
		"datetime": "2025-08-14T09:30:00Z",
		"currency": "CAD",
		"subtotal": 5.25,
		"tax":      "0.68",
		"tip":      1.0,
		"total":    6.93,
		"category": "coffee",
		"line_items": []interface{}{
			map[string]interface{}{"desc": "latte", "qty": 1.0, "price": 5.25},
			map[string]interface{}{"qty": 2.0}, // no desc/price, dropped
		},
	}

	fields := FieldsFromRaw(raw)

	if fields.Merchant == nil || *fields.Merchant != "Blue Bottle" {
		t.Errorf("Merchant = %v, want Blue Bottle", fields.Merchant)
	}
	if fields.Tax == nil || *fields.Tax != 0.68 {
		t.Errorf("Tax = %v, want 0.68 (coerced from string)", fields.Tax)
	}
	if fields.Total == nil || *fields.Total != 6.93 {
		t.Errorf("Total = %v, want 6.93", fields.Total)
	}
	if fields.Category == nil || *fields.Category != "coffee" {
		t.Errorf("Category = %v, want coffee", fields.Category)
	}
	if len(fields.LineItems) != 1 {
		t.Fatalf("LineItems = %d items, want 1", len(fields.LineItems))
	}
	if fields.LineItems[0].Desc != "latte" || fields.LineItems[0].Price != 5.25 {
		t.Errorf("LineItems[0] = %+v", fields.LineItems[0])
	}
}

func TestFieldsFromRaw_MalformedValues(t *testing.T) {
	raw := map[string]interface{}{
		"merchant": 42,                  // wrong type
		"datetime": "",                  // empty string treated as absent
		"subtotal": "not-a-number",      // non-coercible string
		"total":    nil,                 // explicit null
		"category": "   ",               // whitespace only
		"line_items": "should be array", // wrong type
	}

	fields := FieldsFromRaw(raw)

	if !fields.Empty() {
		t.Errorf("FieldsFromRaw(%v) = %+v, want empty fields", raw, fields)
	}
}

func TestFieldsFromRaw_EmptyMap(t *testing.T) {
	fields := FieldsFromRaw(map[string]interface{}{})
	if !fields.Empty() {
		t.Errorf("FieldsFromRaw(empty) = %+v, want empty fields", fields)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"merchant":"A"}`,
			want: `{"merchant":"A"}`,
		},
		{
			name: "json fence",
			raw:  "```json\n{\"merchant\":\"A\"}\n```",
			want: `{"merchant":"A"}`,
		},
		{
			name: "bare fence",
			raw:  "```\n{\"merchant\":\"A\"}\n```",
			want: `{"merchant":"A"}`,
		},
		{
			name: "leading prose",
			raw:  "Here is the JSON you asked for:\n{\"total\": 3}\nHope that helps!",
			want: `{"total": 3}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanModelJSON(tt.raw)
			if got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseModelJSON_Invalid(t *testing.T) {
	if _, err := parseModelJSON("definitely not json"); err == nil {
		t.Error("parseModelJSON should fail on non-JSON text")
	}
}
