package extracts

// Validation outcomes, checked in this order; the first failing rule wins.
const (
	ValidationMissingInvoiceNumber = "Missing Invoice Number"
	ValidationMissingSender        = "Missing Sender Address"
	ValidationMissingReceiver      = "Missing Receiver Address"
	ValidationMissingTotal         = "Missing Total Amount"
	ValidationNegativeAmount       = "Negative Amount"
	ValidationInvalidQuantity      = "Invalid Quantity"
	ValidationInvalidUnitPrice     = "Invalid Unit Price"
	ValidationValid                = "Valid"
)

// Validate checks the business rules an extract must satisfy before the
// invoice can be marked validated.
func Validate(f Fields) string {
	switch {
	case f.InvoiceNumber == nil || *f.InvoiceNumber == "":
		return ValidationMissingInvoiceNumber
	case f.SenderAddress == nil || *f.SenderAddress == "":
		return ValidationMissingSender
	case f.ReceiverAddress == nil || *f.ReceiverAddress == "":
		return ValidationMissingReceiver
	case f.TotalGross == nil:
		return ValidationMissingTotal
	case *f.TotalGross < 0:
		return ValidationNegativeAmount
	case f.Quantity != nil && *f.Quantity <= 0:
		return ValidationInvalidQuantity
	case f.UnitPrice != nil && *f.UnitPrice < 0:
		return ValidationInvalidUnitPrice
	default:
		return ValidationValid
	}
}

// requiredFields must all be present for an extract to be considered complete.
var requiredFields = map[string]bool{
	"invoiceNumber":   true,
	"senderAddress":   true,
	"receiverAddress": true,
	"totalGross":      true,
}

// MissingRequired reports whether any required field is unset.
func MissingRequired(f Fields) bool {
	for _, name := range f.Missing() {
		if requiredFields[name] {
			return true
		}
	}
	return false
}
