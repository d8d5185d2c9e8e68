// Package xlsx tabulates invoice records and renders them as Excel workbooks.
package xlsx

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

const (
	SheetName   = "Invoices"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers are the report columns in order.
var Headers = []string{
	"Invoice Number",
	"Date",
	"Customer Name",
	"Item",
	"Quantity",
	"Tax",
	"Amount",
	"Total amount",
}

// Row is one report line. Nil pointers render as empty cells.
type Row struct {
	InvoiceNumber string
	Date          string
	CustomerName  string
	Item          string
	Quantity      *int
	Tax           *float64
	Amount        *float64
	TotalAmount   *float64
}

// BuildRows emits one row per item plus a trailing summary row.
// The summary Amount is the sum of item amounts; Total amount is the stated record total.
func BuildRows(record domain.InvoiceRecord) []Row {
	rows := make([]Row, 0, record.ItemCount()+1)
	for i, item := range record.Items {
		quantity := record.Quantities[i]
		amount := record.Amounts[i]
		row := Row{Item: item, Quantity: &quantity, Amount: &amount}
		if i == 0 {
			row.InvoiceNumber = record.InvoiceNumber
			row.Date = record.Date
			row.CustomerName = record.CustomerName
		}
		rows = append(rows, row)
	}

	tax := record.Tax
	sum := record.AmountSum()
	total := record.TotalAmount
	rows = append(rows, Row{Tax: &tax, Amount: &sum, TotalAmount: &total})
	return rows
}

type Assembler struct {
	log *slog.Logger
}

func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{log: logger}
}

// Render writes record as a single-sheet workbook named "<source>.xlsx".
func (a *Assembler) Render(fileName string, record domain.InvoiceRecord) (domain.Report, error) {
	start := time.Now()
	rows := BuildRows(record)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return domain.Report{}, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Headers {
		if err := setCell(f, i+1, 1, h); err != nil {
			return domain.Report{}, err
		}
	}
	for r, row := range rows {
		if err := writeRow(f, r+2, row); err != nil {
			return domain.Report{}, err
		}
	}

	_ = f.SetColWidth(SheetName, "A", "B", 16)
	_ = f.SetColWidth(SheetName, "C", "C", 24)
	_ = f.SetColWidth(SheetName, "D", "D", 40)
	_ = f.SetColWidth(SheetName, "E", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return domain.Report{}, fmt.Errorf("xlsx write: %w", err)
	}

	name := filepath.Base(fileName) + ".xlsx"
	a.log.Info("report_rendered",
		"file", name,
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return domain.Report{FileName: name, ContentType: ContentType, Content: buf.Bytes()}, nil
}

func writeRow(f *excelize.File, rowNum int, row Row) error {
	values := []any{
		row.InvoiceNumber,
		row.Date,
		row.CustomerName,
		row.Item,
		intOrEmpty(row.Quantity),
		floatOrEmpty(row.Tax),
		floatOrEmpty(row.Amount),
		floatOrEmpty(row.TotalAmount),
	}
	for col, v := range values {
		if err := setCell(f, col+1, rowNum, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func intOrEmpty(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func floatOrEmpty(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
