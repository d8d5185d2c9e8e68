package usecase

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

func newNormalizer(t *testing.T) *RecordNormalizer {
	t.Helper()
	n, err := NewRecordNormalizer()
	if err != nil {
		t.Fatalf("NewRecordNormalizer() error = %v", err)
	}
	return n
}

func requireValidationKey(t *testing.T, err error, key string) {
	t.Helper()
	if !domain.IsKind(err, domain.ErrStructuralValidation) {
		t.Fatalf("expected ErrStructuralValidation, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Key != key {
		t.Fatalf("expected key %q, got %q (%v)", key, verr.Key, err)
	}
	if !strings.Contains(err.Error(), key) {
		t.Fatalf("expected error to name %q, got %v", key, err)
	}
}

func TestNormalizeWellFormedInvoice(t *testing.T) {
	record, err := newNormalizer(t).Normalize(invoiceLiteral)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := domain.InvoiceRecord{
		InvoiceNumber: "INV-001",
		Date:          "2024-03-01",
		CustomerName:  "Acme Corp",
		Items:         []string{"Widget: Blue, large", "Gadget"},
		Quantities:    []int{2, 1},
		Amounts:       []float64{100, 50.5},
		Tax:           15,
		TotalAmount:   165.5,
	}
	if !reflect.DeepEqual(record, want) {
		t.Fatalf("unexpected record:\n got %+v\nwant %+v", record, want)
	}
}

func TestNormalizeIgnoresCodeFences(t *testing.T) {
	n := newNormalizer(t)
	plain, err := n.Normalize(invoiceLiteral)
	if err != nil {
		t.Fatalf("Normalize(plain) error = %v", err)
	}
	fenced, err := n.Normalize("```python\n" + invoiceLiteral + "\n```")
	if err != nil {
		t.Fatalf("Normalize(fenced) error = %v", err)
	}
	if !reflect.DeepEqual(plain, fenced) {
		t.Fatalf("fenced record differs:\n got %+v\nwant %+v", fenced, plain)
	}
}

func TestNormalizeKeepsBackticksInsideStrings(t *testing.T) {
	record := domain.InvoiceRecord{
		InvoiceNumber: "INV-7",
		Date:          "2024-03-01",
		CustomerName:  "Acme",
		Items:         []string{"Code ```block``` svc"},
		Quantities:    []int{1},
		Amounts:       []float64{99.5},
		Tax:           0,
		TotalAmount:   99.5,
	}

	n := newNormalizer(t)
	for _, raw := range []string{Format(record), "```python\n" + Format(record) + "\n```"} {
		got, err := n.Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize() error = %v\n%s", err, raw)
		}
		if !reflect.DeepEqual(got, record) {
			t.Fatalf("backtick item lost:\n got %+v\nwant %+v", got, record)
		}
	}
}

func TestNormalizeToleratesSurroundingProse(t *testing.T) {
	raw := "Here is the dictionary you asked for:\n" + invoiceLiteral + "\nLet me know if you need more."
	if _, err := newNormalizer(t).Normalize(raw); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
}

func TestNormalizeMissingTaxNamesKey(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "'Tax': 15,\n", "", 1)
	_, err := newNormalizer(t).Normalize(raw)
	requireValidationKey(t, err, domain.KeyTax)
}

func TestNormalizeRejectsExtraKey(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "'Tax': 15,", "'Tax': 15, 'Discount': 3,", 1)
	_, err := newNormalizer(t).Normalize(raw)
	requireValidationKey(t, err, "Discount")
}

func TestNormalizeTypeErrorNamesKey(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "'Customer Name': 'Acme Corp'", "'Customer Name': ['Acme']", 1)
	_, err := newNormalizer(t).Normalize(raw)
	requireValidationKey(t, err, domain.KeyCustomerName)
}

func TestNormalizeRejectsScalarItems(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "['Widget: Blue, large', 'Gadget']", "'Widget'", 1)
	_, err := newNormalizer(t).Normalize(raw)
	requireValidationKey(t, err, domain.KeyItems)
}

func TestNormalizeLengthMismatch(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		key  string
	}{
		{name: "quantities", from: "'Quantities': [2, 1]", to: "'Quantities': [2]", key: domain.KeyQuantities},
		{name: "amounts", from: "'Amounts': [100, 50.5]", to: "'Amounts': [100, 50.5, 7]", key: domain.KeyAmounts},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newNormalizer(t).Normalize(strings.Replace(invoiceLiteral, tc.from, tc.to, 1))
			requireValidationKey(t, err, tc.key)
		})
	}
}

func TestNormalizeCoercesNumericStrings(t *testing.T) {
	raw := strings.NewReplacer(
		"'Amounts': [100, 50.5]", "'Amounts': ['$1,000.00', '50.50']",
		"'Tax': 15", "'Tax': '€ 15'",
		"'Quantities': [2, 1]", "'Quantities': ['2', 1.0]",
	).Replace(invoiceLiteral)

	record, err := newNormalizer(t).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if record.Amounts[0] != 1000 || record.Amounts[1] != 50.5 {
		t.Fatalf("unexpected amounts: %v", record.Amounts)
	}
	if record.Tax != 15 {
		t.Fatalf("unexpected tax: %v", record.Tax)
	}
	if record.Quantities[0] != 2 || record.Quantities[1] != 1 {
		t.Fatalf("unexpected quantities: %v", record.Quantities)
	}
}

func TestNormalizeRejectsFractionalQuantity(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "'Quantities': [2, 1]", "'Quantities': [2.5, 1]", 1)
	_, err := newNormalizer(t).Normalize(raw)
	requireValidationKey(t, err, domain.KeyQuantities)
}

func TestNormalizeRejectsNonNumericTotal(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "'Total Amount': 165.5", "'Total Amount': 'see attached'", 1)
	_, err := newNormalizer(t).Normalize(raw)
	requireValidationKey(t, err, domain.KeyTotalAmount)
}

func TestNormalizeRejectsNonDictionaryOutput(t *testing.T) {
	n := newNormalizer(t)
	for _, raw := range []string{
		"I could not find an invoice in this document.",
		"{'Invoice Number': 'INV-1', oops}",
		"{__import__('os').system('rm -rf /')}",
	} {
		_, err := n.Normalize(raw)
		if !domain.IsKind(err, domain.ErrStructuralValidation) {
			t.Fatalf("Normalize(%q) expected ErrStructuralValidation, got %v", raw, err)
		}
	}
}

func TestNormalizeDoesNotCheckArithmetic(t *testing.T) {
	raw := strings.Replace(invoiceLiteral, "'Total Amount': 165.5", "'Total Amount': 9999", 1)
	record, err := newNormalizer(t).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if record.TotalAmount != 9999 {
		t.Fatalf("expected stated total to pass through, got %v", record.TotalAmount)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	records := []domain.InvoiceRecord{
		{
			InvoiceNumber: "INV-42",
			Date:          "01/02/2024",
			CustomerName:  "O'Brien & Sons",
			Items:         []string{"Consulting: 3 days", "Travel \\ lodging", "Line\nbreak"},
			Quantities:    []int{3, 1, 0},
			Amounts:       []float64{1500, 320.75, -10},
			Tax:           0.07,
			TotalAmount:   1810.75,
		},
		{
			InvoiceNumber: "",
			Date:          "",
			CustomerName:  "Nobody",
			Items:         []string{},
			Quantities:    []int{},
			Amounts:       []float64{},
			Tax:           0,
			TotalAmount:   1e21,
		},
	}

	n := newNormalizer(t)
	for _, record := range records {
		got, err := n.Normalize(Format(record))
		if err != nil {
			t.Fatalf("Normalize(Format()) error = %v\n%s", err, Format(record))
		}
		if !reflect.DeepEqual(got, record) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, record)
		}
	}
}
