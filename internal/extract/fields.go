package extract

import (
	"strconv"
	"strings"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// FieldsFromRaw converts the model's generic JSON object into typed
// ExtractedFields. Unknown keys are ignored; values of the wrong type are
// coerced where a sane coercion exists (numeric strings) and dropped
// otherwise. It never fails.
func FieldsFromRaw(raw map[string]interface{}) schema.ExtractedFields {
	fields := schema.ExtractedFields{
		Merchant: stringField(raw, "merchant"),
		Datetime: stringField(raw, "datetime"),
		Currency: stringField(raw, "currency"),
		Subtotal: numberField(raw, "subtotal"),
		Tax:      numberField(raw, "tax"),
		Tip:      numberField(raw, "tip"),
		Total:    numberField(raw, "total"),
		Category: stringField(raw, "category"),
	}

	if items, ok := raw["line_items"].([]interface{}); ok {
		fields.LineItems = lineItemsFromRaw(items)
	}

	return fields
}

func lineItemsFromRaw(items []interface{}) []schema.LineItem {
	result := make([]schema.LineItem, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		desc := stringField(obj, "desc")
		price := numberField(obj, "price")
		if desc == nil || price == nil {
			// An item without a description and price is noise.
			continue
		}

		result = append(result, schema.LineItem{
			Desc:  *desc,
			Qty:   numberField(obj, "qty"),
			Price: *price,
		})
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// stringField returns the trimmed string under key, or nil when the value is
// absent, empty, or not a string.
func stringField(m map[string]interface{}, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// numberField returns the number under key, or nil when the value is absent
// or not coercible. Numeric strings like "12.30" are accepted since models
// quote numbers often enough to matter.
func numberField(m map[string]interface{}, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f
	case int:
		f := float64(val)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
