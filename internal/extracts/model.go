package extracts

import (
	"math"
	"time"
	"unicode/utf8"
)

// ProcessingStatus tracks an extraction job. Completed and failed are terminal.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Fields is the closed set of values pulled from an invoice. Every field is
// optional; nil means the extractor found nothing usable.
type Fields struct {
	InvoiceNumber   *string    `json:"invoiceNumber"`
	InvoiceDate     *time.Time `json:"invoiceDate"`
	SenderAddress   *string    `json:"senderAddress"`
	ReceiverAddress *string    `json:"receiverAddress"`
	Product         *string    `json:"product"`
	Quantity        *float64   `json:"quantity"`
	UnitPrice       *float64   `json:"unitPrice"`
	Subtotal        *float64   `json:"subtotal"`
	VATRate         *float64   `json:"vatRate"`
	VATAmount       *float64   `json:"vatAmount"`
	TotalGross      *float64   `json:"totalGross"`
	BankIBAN        *string    `json:"bankIban"`
	BankBIC         *string    `json:"bankBic"`
	BankName        *string    `json:"bankName"`
}

// Missing lists the JSON names of unset fields, in declaration order.
func (f Fields) Missing() []string {
	var out []string
	for _, c := range f.columns() {
		if c.value == nil {
			out = append(out, c.field)
		}
	}
	return out
}

// Count returns the number of populated fields.
func (f Fields) Count() int {
	return len(fieldColumns) - len(f.Missing())
}

// Column limits of invoice_extracts. Values outside them are dropped before
// they reach the store.
const (
	maxInvoiceNumberLen = 100
	maxIBANLen          = 34
	maxBICLen           = 11
	maxBankNameLen      = 255
	// NUMERIC(12,2)
	maxAmount = 1e10
	// NUMERIC(5,2)
	maxRate = 1e3
)

// Bounded returns f with every value that does not fit its column cleared.
func (f Fields) Bounded() Fields {
	f.InvoiceNumber = boundStr(f.InvoiceNumber, maxInvoiceNumberLen)
	f.BankIBAN = boundStr(f.BankIBAN, maxIBANLen)
	f.BankBIC = boundStr(f.BankBIC, maxBICLen)
	f.BankName = boundStr(f.BankName, maxBankNameLen)
	f.Quantity = boundNum(f.Quantity, maxAmount)
	f.UnitPrice = boundNum(f.UnitPrice, maxAmount)
	f.Subtotal = boundNum(f.Subtotal, maxAmount)
	f.VATAmount = boundNum(f.VATAmount, maxAmount)
	f.TotalGross = boundNum(f.TotalGross, maxAmount)
	f.VATRate = boundNum(f.VATRate, maxRate)
	return f
}

func boundStr(s *string, max int) *string {
	if s == nil || utf8.RuneCountInString(*s) > max {
		return nil
	}
	return s
}

// boundNum also rejects values that round up to the limit at two decimals.
func boundNum(v *float64, limit float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.Abs(math.Round(*v*100)/100) >= limit {
		return nil
	}
	return v
}

type column struct {
	name  string
	field string
	value any
}

var fieldColumns = []string{
	"invoice_number", "invoice_date", "sender_address", "receiver_address", "product",
	"quantity", "unit_price", "subtotal", "vat_rate", "vat_amount", "total_gross",
	"bank_iban", "bank_bic", "bank_name",
}

// columns maps each field to its column. Unset fields carry an untyped nil so
// callers can test presence and the driver writes NULL.
func (f Fields) columns() []column {
	vals := []any{
		strOrNil(f.InvoiceNumber), dateOrNil(f.InvoiceDate), strOrNil(f.SenderAddress), strOrNil(f.ReceiverAddress), strOrNil(f.Product),
		numOrNil(f.Quantity), numOrNil(f.UnitPrice), numOrNil(f.Subtotal), numOrNil(f.VATRate), numOrNil(f.VATAmount), numOrNil(f.TotalGross),
		strOrNil(f.BankIBAN), strOrNil(f.BankBIC), strOrNil(f.BankName),
	}
	names := []string{
		"invoiceNumber", "invoiceDate", "senderAddress", "receiverAddress", "product",
		"quantity", "unitPrice", "subtotal", "vatRate", "vatAmount", "totalGross",
		"bankIban", "bankBic", "bankName",
	}
	out := make([]column, len(fieldColumns))
	for i := range fieldColumns {
		out[i] = column{name: fieldColumns[i], field: names[i], value: vals[i]}
	}
	return out
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func numOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Extract is the structured result row for one invoice.
type Extract struct {
	ID               string           `json:"id"`
	InvoiceID        string           `json:"invoiceId"`
	JobID            string           `json:"textractJobId"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	Fields
	Confidence *float64  `json:"extractionConfidence"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
