package literal

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseInvoiceShapedDict(t *testing.T) {
	src := `{
		'Invoice Number': 'INV-001',
		'Date': "2024-01-31",
		'Customer Name': 'O\'Brien Ltd',
		'All items': ['Widget: blue', 'Bolt'],
		'Quantities': [1, 2],
		'Amounts': [100.50, 2_000],
		'Tax': 12.5,  # total tax
		'Total Amount': 2113,
	}`

	got, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := map[string]any{
		"Invoice Number": "INV-001",
		"Date":           "2024-01-31",
		"Customer Name":  "O'Brien Ltd",
		"All items":      []any{"Widget: blue", "Bolt"},
		"Quantities":     []any{json.Number("1"), json.Number("2")},
		"Amounts":        []any{json.Number("100.5"), json.Number("2000")},
		"Tax":            json.Number("12.5"),
		"Total Amount":   json.Number("2113"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse() = %#v, want %#v", got, want)
	}
}

func TestParseScalarsAndContainers(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want any
	}{
		{name: "none", src: "None", want: nil},
		{name: "json null", src: "null", want: nil},
		{name: "bools", src: "[True, false]", want: []any{true, false}},
		{name: "tuple", src: "(1, -2.5)", want: []any{json.Number("1"), json.Number("-2.5")}},
		{name: "empty dict", src: "{}", want: map[string]any{}},
		{name: "implicit concat", src: `'a' "b" r'\d'`, want: `ab\d`},
		{name: "triple quoted", src: `'''multi
line'''`, want: "multi\nline"},
		{name: "unicode escape", src: `'café'`, want: "café"},
		{name: "exponent", src: "1e3", want: json.Number("1000")},
		{name: "leading dot", src: ".5", want: json.Number("0.5")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tc.src, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %#v, want %#v", tc.src, got, tc.want)
			}
		})
	}
}

func TestParseStringPrefixes(t *testing.T) {
	cases := map[string]string{
		`r'C:\temp\n'`: `C:\temp\n`,
		`R"raw\t"`:     `raw\t`,
		`u'unicode'`:   "unicode",
		`U"tab\there"`: "tab\there",
	}
	for src, want := range cases {
		got, err := Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", src, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %q, want %q", src, got, want)
		}
	}

	got, err := Parse(`['x', r'\d+']`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(got, []any{"x", `\d+`}) {
		t.Fatalf("Parse() = %#v", got)
	}

	if _, err := Parse(`r`); err == nil {
		t.Fatalf("expected error for a bare prefix")
	}
}

func TestParseRejectsCode(t *testing.T) {
	inputs := []string{
		`__import__('os').system('rm -rf /')`,
		`{'a': open('x')}`,
		`{'a': 1 + 2}`,
		`[x for x in range(3)]`,
		`lambda: 1`,
	}
	for _, src := range inputs {
		_, err := Parse(src)
		var syntaxErr *SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("Parse(%q) error = %v, want *SyntaxError", src, err)
		}
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	inputs := []string{
		`{'a': 1`,
		`{'a' 1}`,
		`{1: 'a'}`,
		`['a', 'b'`,
		`'unterminated`,
		`{'a': 1} trailing`,
		`{'Tax': 10 'Total Amount': 20}`,
		`1.2.3`,
		``,
	}
	for _, src := range inputs {
		if _, err := Parse(src); err == nil {
			t.Fatalf("Parse(%q) expected error", src)
		}
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	for _, s := range []string{"plain", "it's", `back\slash`, "tab\tnew\nline", "ctrl\x01", "ünïcode"} {
		got, err := Parse(Quote(s))
		if err != nil {
			t.Fatalf("Parse(Quote(%q)) error = %v", s, err)
		}
		if got != s {
			t.Fatalf("Parse(Quote(%q)) = %q", s, got)
		}
	}
}
