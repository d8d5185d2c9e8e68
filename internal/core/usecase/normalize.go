package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/literal"
)

const recordSchemaURL = "mem://invoice-record.json"

// recordSchema checks value types only; key presence is checked first so errors name the key.
const recordSchema = `{
  "type": "object",
  "properties": {
    "Invoice Number": {"type": ["string", "number"]},
    "Date":           {"type": ["string", "number"]},
    "Customer Name":  {"type": "string"},
    "All items":      {"type": "array", "items": {"type": ["string", "number"]}},
    "Quantities":     {"type": "array", "items": {"type": ["number", "string"]}},
    "Amounts":        {"type": "array", "items": {"type": ["number", "string"]}},
    "Tax":            {"type": ["number", "string"]},
    "Total Amount":   {"type": ["number", "string"]}
  }
}`

// RecordNormalizer turns the model's dictionary-shaped answer into an InvoiceRecord.
type RecordNormalizer struct {
	schema *jsonschema.Schema
}

func NewRecordNormalizer() (*RecordNormalizer, error) {
	schema, err := jsonschema.CompileString(recordSchemaURL, recordSchema)
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &RecordNormalizer{schema: schema}, nil
}

func (n *RecordNormalizer) Normalize(raw string) (domain.InvoiceRecord, error) {
	body, err := dictionarySpan(StripCodeFences(raw))
	if err != nil {
		return domain.InvoiceRecord{}, err
	}

	parsed, err := literal.Parse(body)
	if err != nil {
		return domain.InvoiceRecord{}, &domain.ValidationError{Reason: fmt.Sprintf("not a dictionary literal: %v", err)}
	}
	fields, ok := parsed.(map[string]any)
	if !ok {
		return domain.InvoiceRecord{}, &domain.ValidationError{Reason: "top-level value is not a mapping"}
	}

	if err := checkKeySet(fields); err != nil {
		return domain.InvoiceRecord{}, err
	}
	if err := n.schema.Validate(fields); err != nil {
		return domain.InvoiceRecord{}, schemaError(err)
	}
	return buildRecord(fields)
}

// Format renders record as the canonical dictionary literal; Normalize reads it back unchanged.
func Format(record domain.InvoiceRecord) string {
	items := make([]string, len(record.Items))
	for i, item := range record.Items {
		items[i] = literal.Quote(item)
	}
	quantities := make([]string, len(record.Quantities))
	for i, q := range record.Quantities {
		quantities[i] = literal.FormatInt(q)
	}
	amounts := make([]string, len(record.Amounts))
	for i, a := range record.Amounts {
		amounts[i] = literal.FormatFloat(a)
	}

	entries := []string{
		literal.Quote(domain.KeyInvoiceNumber) + ": " + literal.Quote(record.InvoiceNumber),
		literal.Quote(domain.KeyDate) + ": " + literal.Quote(record.Date),
		literal.Quote(domain.KeyCustomerName) + ": " + literal.Quote(record.CustomerName),
		literal.Quote(domain.KeyItems) + ": [" + strings.Join(items, ", ") + "]",
		literal.Quote(domain.KeyQuantities) + ": [" + strings.Join(quantities, ", ") + "]",
		literal.Quote(domain.KeyAmounts) + ": [" + strings.Join(amounts, ", ") + "]",
		literal.Quote(domain.KeyTax) + ": " + literal.FormatFloat(record.Tax),
		literal.Quote(domain.KeyTotalAmount) + ": " + literal.FormatFloat(record.TotalAmount),
	}
	return "{\n    " + strings.Join(entries, ",\n    ") + "\n}"
}

func dictionarySpan(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", &domain.ValidationError{Reason: "no dictionary literal in model output"}
	}
	return text[start : end+1], nil
}

func checkKeySet(fields map[string]any) error {
	for _, key := range domain.RecordKeys {
		if _, ok := fields[key]; !ok {
			return &domain.ValidationError{Key: key, Reason: "missing key"}
		}
	}
	if len(fields) == len(domain.RecordKeys) {
		return nil
	}
	known := make(map[string]struct{}, len(domain.RecordKeys))
	for _, key := range domain.RecordKeys {
		known[key] = struct{}{}
	}
	extra := make([]string, 0, len(fields))
	for key := range fields {
		if _, ok := known[key]; !ok {
			extra = append(extra, key)
		}
	}
	// Map order is random; report the smallest key so the message is stable.
	first := extra[0]
	for _, key := range extra[1:] {
		if key < first {
			first = key
		}
	}
	return &domain.ValidationError{Key: first, Reason: "unexpected key"}
}

func schemaError(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &domain.ValidationError{Reason: err.Error()}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &domain.ValidationError{Key: topLevelKey(leaf.InstanceLocation), Reason: leaf.Message}
}

// topLevelKey returns the first segment of an instance location such as "/Total%20Amount/0".
// Locations are URL-escaped JSON pointers.
func topLevelKey(pointer string) string {
	pointer = strings.TrimPrefix(strings.TrimPrefix(pointer, "#"), "/")
	if i := strings.IndexByte(pointer, '/'); i >= 0 {
		pointer = pointer[:i]
	}
	if unescaped, err := url.PathUnescape(pointer); err == nil {
		pointer = unescaped
	}
	pointer = strings.ReplaceAll(pointer, "~1", "/")
	return strings.ReplaceAll(pointer, "~0", "~")
}

func buildRecord(fields map[string]any) (domain.InvoiceRecord, error) {
	record := domain.InvoiceRecord{
		InvoiceNumber: scalarText(fields[domain.KeyInvoiceNumber]),
		Date:          scalarText(fields[domain.KeyDate]),
		CustomerName:  scalarText(fields[domain.KeyCustomerName]),
	}

	rawItems := fields[domain.KeyItems].([]any)
	record.Items = make([]string, len(rawItems))
	for i, item := range rawItems {
		record.Items[i] = scalarText(item)
	}

	rawQuantities := fields[domain.KeyQuantities].([]any)
	record.Quantities = make([]int, len(rawQuantities))
	for i, value := range rawQuantities {
		q, err := toQuantity(value)
		if err != nil {
			return domain.InvoiceRecord{}, &domain.ValidationError{Key: domain.KeyQuantities, Reason: fmt.Sprintf("element %d: %v", i, err)}
		}
		record.Quantities[i] = q
	}

	rawAmounts := fields[domain.KeyAmounts].([]any)
	record.Amounts = make([]float64, len(rawAmounts))
	for i, value := range rawAmounts {
		a, err := toNumber(value)
		if err != nil {
			return domain.InvoiceRecord{}, &domain.ValidationError{Key: domain.KeyAmounts, Reason: fmt.Sprintf("element %d: %v", i, err)}
		}
		record.Amounts[i] = a
	}

	var err error
	if record.Tax, err = toNumber(fields[domain.KeyTax]); err != nil {
		return domain.InvoiceRecord{}, &domain.ValidationError{Key: domain.KeyTax, Reason: err.Error()}
	}
	if record.TotalAmount, err = toNumber(fields[domain.KeyTotalAmount]); err != nil {
		return domain.InvoiceRecord{}, &domain.ValidationError{Key: domain.KeyTotalAmount, Reason: err.Error()}
	}

	switch {
	case len(record.Quantities) != len(record.Items):
		return domain.InvoiceRecord{}, &domain.ValidationError{
			Key:    domain.KeyQuantities,
			Reason: fmt.Sprintf("length %d does not match %d items", len(record.Quantities), len(record.Items)),
		}
	case len(record.Amounts) != len(record.Items):
		return domain.InvoiceRecord{}, &domain.ValidationError{
			Key:    domain.KeyAmounts,
			Reason: fmt.Sprintf("length %d does not match %d items", len(record.Amounts), len(record.Items)),
		}
	}
	return record, nil
}

func scalarText(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func toNumber(v any) (float64, error) {
	switch value := v.(type) {
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", value.String())
		}
		return f, nil
	case string:
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r):
				return -1
			default:
				return r
			}
		}, value)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number: %q", value)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toQuantity(v any) (int, error) {
	f, err := toNumber(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("quantity %v is not a whole number", f)
	}
	return int(f), nil
}
