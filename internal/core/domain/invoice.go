package domain

// Canonical keys of the dictionary the model is asked to produce.
const (
	KeyInvoiceNumber = "Invoice Number"
	KeyDate          = "Date"
	KeyCustomerName  = "Customer Name"
	KeyItems         = "All items"
	KeyQuantities    = "Quantities"
	KeyAmounts       = "Amounts"
	KeyTax           = "Tax"
	KeyTotalAmount   = "Total Amount"
)

// RecordKeys lists the canonical keys in presentation order.
var RecordKeys = []string{
	KeyInvoiceNumber,
	KeyDate,
	KeyCustomerName,
	KeyItems,
	KeyQuantities,
	KeyAmounts,
	KeyTax,
	KeyTotalAmount,
}

// InvoiceRecord is the validated structured output for one document.
// Items, Quantities and Amounts always have the same length.
type InvoiceRecord struct {
	InvoiceNumber string    `json:"invoice_number"`
	Date          string    `json:"date"`
	CustomerName  string    `json:"customer_name"`
	Items         []string  `json:"items"`
	Quantities    []int     `json:"quantities"`
	Amounts       []float64 `json:"amounts"`
	Tax           float64   `json:"tax"`
	TotalAmount   float64   `json:"total_amount"`
}

func (r InvoiceRecord) ItemCount() int {
	return len(r.Items)
}

// AmountSum is the plain sum of per-item amounts. It is not reconciled with TotalAmount.
func (r InvoiceRecord) AmountSum() float64 {
	var sum float64
	for _, amount := range r.Amounts {
		sum += amount
	}
	return sum
}

// UploadedFile is one document of a batch as received from the caller.
type UploadedFile struct {
	Name    string
	Content []byte
}

// Report is a rendered spreadsheet for one invoice record.
type Report struct {
	FileName    string
	ContentType string
	Content     []byte
}
