// Package fieldextract turns OCR output into structured invoice fields.
package fieldextract

import (
	"regexp"
	"strings"
	"unicode"

	"invoice-backend/internal/extracts"
)

// Pair is a key/value association detected by the OCR engine.
type Pair struct {
	Key   string
	Value string
}

// Document is the OCR output of one invoice: text lines in reading order and
// any form pairs the engine detected.
type Document struct {
	Lines []string
	Pairs []Pair
}

const amount = `(?:EUR|€)?[ \t]*(-?\d[\d.,]*)`

var (
	invoiceNumberRe = regexp.MustCompile(`(?i)(?:Rechnungs-?(?:nummer|nr\.?)|Rechnung[ \t]+Nr\.?|Invoice[ \t]*(?:No\.?|Number|#)|Beleg-?nr\.?)[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9/\-.]*[A-Z0-9])`)
	productRe       = regexp.MustCompile(`(?im)^[ \t]*(?:Beschreibung|Leistung|Artikel|Produkt|Bezeichnung|Description|Product|Item)[ \t]*:[ \t]*(\S.*)$`)
	quantityRe      = regexp.MustCompile(`(?i)(?:Menge|Anzahl|Quantity|Qty)\.?[ \t]*:?[ \t]*(-?\d+(?:[.,]\d+)?)`)
	unitPriceRe     = regexp.MustCompile(`(?i)(?:Einzelpreis|Stückpreis|Unit[ \t]*Price|Preis[ \t]+pro[ \t]+Einheit)[ \t]*:?[ \t]*` + amount)
	subtotalRe      = regexp.MustCompile(`(?i)(?:Nettobetrag|Nettosumme|Zwischensumme|Subtotal|Net[ \t]*Amount|Netto)[ \t]*:?[ \t]*` + amount)
	vatRateFirstRe  = regexp.MustCompile(`(?i)(?:MwSt|USt|Umsatzsteuer|Mehrwertsteuer|VAT)\.?[ \t]*(\d{1,2}(?:[.,]\d{1,2})?)[ \t]*%[ \t]*:?[ \t]*(?:` + amount + `)?`)
	vatRateLastRe   = regexp.MustCompile(`(?i)(\d{1,2}(?:[.,]\d{1,2})?)[ \t]*%[ \t]*(?:MwSt|USt|Umsatzsteuer|Mehrwertsteuer|VAT)\.?[ \t]*:?[ \t]*(?:` + amount + `)?`)
	vatAmountRe     = regexp.MustCompile(`(?i)(?:MwSt|USt|Umsatzsteuer|Mehrwertsteuer|VAT)(?:-?Betrag)?\.?[ \t]*:[ \t]*` + amount)
	ibanRe          = regexp.MustCompile(`(?i)IBAN[ \t]*:?[ \t]*([A-Z]{2}[ \t]?\d{2}(?:[ \t]?[A-Z0-9]){10,30})`)
	bicRe           = regexp.MustCompile(`(?i)(?:BIC|SWIFT)(?:[ \t]*/[ \t]*SWIFT)?(?:-Code)?[ \t]*:?[ \t]*([A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)\b`)
	bankNameRe      = regexp.MustCompile(`(?im)(?:Bankname|Bank|Kreditinstitut|Geldinstitut)[ \t]*:[ \t]*(\S[^\n]*)$`)

	invoiceDateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Rechnungsdatum|Invoice[ \t]*Date)[ \t]*:?[ \t]*(\d{1,2}\.\d{1,2}\.\d{4}|\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(?i)\b(?:Datum|Date)[ \t]*:?[ \t]*(\d{1,2}\.\d{1,2}\.\d{4}|\d{4}-\d{2}-\d{2})`),
	}
	totalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Gesamtbetrag|Rechnungsbetrag|Bruttobetrag|Gesamtsumme|Endbetrag|Zu[ \t]+zahlen|Grand[ \t]*Total|Total[ \t]*Amount|Amount[ \t]*Due)[ \t]*:?[ \t]*` + amount),
		regexp.MustCompile(`(?i)(?:Brutto|Gesamt|\bTotal)[ \t]*:?[ \t]*` + amount),
	}

	senderAnchor   = regexp.MustCompile(`(?i)^[ \t]*(?:Verkäufer|Absender|Rechnungssteller|Lieferant|Von|From|Seller|Sender)[ \t]*:[ \t]*(.*)$`)
	receiverAnchor = regexp.MustCompile(`(?i)^[ \t]*(?:Rechnungsempfänger|Empfänger|Kunde|Käufer|An|To|Bill[ \t]*To|Customer|Receiver)[ \t]*:[ \t]*(.*)$`)
	labelLine      = regexp.MustCompile(`^[\p{L}][\p{L}\d .\-/]*:`)
)

const maxAddressLines = 4

// Extract maps OCR output onto invoice fields. Patterns over the joined text
// are authoritative; detected key/value pairs only fill fields the text
// patterns left empty. Anything unmatched stays nil.
func Extract(doc Document) extracts.Fields {
	f := fromText(doc.Lines).Bounded()
	fillFromPairs(&f, doc.Pairs)
	return f.Bounded()
}

// ExtractText is Extract for plain text without key/value pairs.
func ExtractText(text string) extracts.Fields {
	return Extract(Document{Lines: strings.Split(text, "\n")})
}

func fromText(lines []string) extracts.Fields {
	text := strings.Join(lines, "\n")
	var f extracts.Fields

	if m := invoiceNumberRe.FindStringSubmatch(text); m != nil {
		f.InvoiceNumber = strPtr(m[1])
	}
	for _, re := range invoiceDateRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if t, ok := ParseDate(m[1]); ok {
			f.InvoiceDate = &t
			break
		}
	}
	f.SenderAddress = addressBlock(lines, senderAnchor)
	f.ReceiverAddress = addressBlock(lines, receiverAnchor)
	if m := productRe.FindStringSubmatch(text); m != nil {
		f.Product = strPtr(m[1])
	}
	f.Quantity = amountFrom(quantityRe, text)
	f.UnitPrice = amountFrom(unitPriceRe, text)
	f.Subtotal = amountFrom(subtotalRe, text)

	for _, re := range []*regexp.Regexp{vatRateFirstRe, vatRateLastRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := ParsePercent(m[1]); ok {
			f.VATRate = &v
		}
		if v, ok := ParseAmount(m[2]); ok && m[2] != "" {
			f.VATAmount = &v
		}
		break
	}
	if f.VATAmount == nil {
		f.VATAmount = amountFrom(vatAmountRe, text)
	}

	for _, re := range totalRes {
		if v := amountFrom(re, text); v != nil {
			f.TotalGross = v
			break
		}
	}

	if m := ibanRe.FindStringSubmatch(text); m != nil {
		if iban, ok := NormalizeIBAN(m[1]); ok {
			f.BankIBAN = &iban
		}
	}
	if m := bicRe.FindStringSubmatch(text); m != nil {
		bic := strings.ToUpper(m[1])
		f.BankBIC = &bic
	}
	if m := bankNameRe.FindStringSubmatch(text); m != nil {
		f.BankName = strPtr(m[1])
	}
	return f
}

// addressBlock returns the text after the anchor label plus the following
// lines up to a blank line or the next "Label:" line, joined with ", ".
func addressBlock(lines []string, anchor *regexp.Regexp) *string {
	for i, line := range lines {
		m := anchor.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var parts []string
		if rest := strings.TrimSpace(m[1]); rest != "" {
			parts = append(parts, rest)
		}
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next == "" || labelLine.MatchString(next) || len(parts) >= maxAddressLines {
				break
			}
			parts = append(parts, next)
		}
		if len(parts) == 0 {
			continue
		}
		joined := strings.Join(parts, ", ")
		return &joined
	}
	return nil
}

func amountFrom(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, ok := ParseAmount(m[1])
	if !ok {
		return nil
	}
	return &v
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type field int

const (
	fieldInvoiceNumber field = iota
	fieldInvoiceDate
	fieldSender
	fieldReceiver
	fieldProduct
	fieldQuantity
	fieldUnitPrice
	fieldSubtotal
	fieldVATRate
	fieldVATAmount
	fieldTotal
	fieldIBAN
	fieldBIC
	fieldBankName
)

var synonyms = []struct {
	field field
	words []string
}{
	{fieldInvoiceNumber, []string{"invoice number", "invoice no", "invoice", "rechnungsnummer", "rechnungsnr", "rechnungs nr", "rechnung nr", "inv"}},
	{fieldInvoiceDate, []string{"invoice date", "rechnungsdatum", "datum", "date"}},
	{fieldSender, []string{"from", "sender", "absender", "seller", "verkäufer", "rechnungssteller"}},
	{fieldReceiver, []string{"to", "bill to", "receiver", "empfänger", "rechnungsempfänger", "kunde", "customer"}},
	{fieldProduct, []string{"product", "item", "description", "artikel", "beschreibung", "leistung"}},
	{fieldQuantity, []string{"quantity", "qty", "menge", "anzahl"}},
	{fieldUnitPrice, []string{"unit price", "price", "einzelpreis", "preis"}},
	{fieldSubtotal, []string{"subtotal", "net amount", "netto", "nettobetrag", "zwischensumme", "net"}},
	{fieldVATRate, []string{"vat rate", "tax rate", "mwst satz", "steuersatz"}},
	{fieldVATAmount, []string{"vat", "tax", "mwst", "ust", "umsatzsteuer"}},
	{fieldTotal, []string{"total", "gross", "brutto", "gesamt", "gesamtbetrag", "amount due"}},
	{fieldIBAN, []string{"iban"}},
	{fieldBIC, []string{"bic", "swift"}},
	{fieldBankName, []string{"bank", "bankname", "kreditinstitut"}},
}

// classify picks the field whose longest synonym matches whole words of key.
func classify(key string) (field, bool) {
	words := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return 0, false
	}
	padded := " " + strings.Join(words, " ") + " "
	best, bestLen, found := field(0), 0, false
	for _, s := range synonyms {
		for _, w := range s.words {
			if len(w) > bestLen && strings.Contains(padded, " "+w+" ") {
				best, bestLen, found = s.field, len(w), true
			}
		}
	}
	return best, found
}

func fillFromPairs(f *extracts.Fields, pairs []Pair) {
	for _, p := range pairs {
		value := strings.TrimSpace(p.Value)
		if value == "" {
			continue
		}
		fld, ok := classify(p.Key)
		if !ok {
			continue
		}
		switch fld {
		case fieldInvoiceNumber:
			if f.InvoiceNumber == nil {
				f.InvoiceNumber = strPtr(value)
			}
		case fieldInvoiceDate:
			if f.InvoiceDate == nil {
				if t, ok := ParseDate(value); ok {
					f.InvoiceDate = &t
				}
			}
		case fieldSender:
			if f.SenderAddress == nil {
				f.SenderAddress = strPtr(value)
			}
		case fieldReceiver:
			if f.ReceiverAddress == nil {
				f.ReceiverAddress = strPtr(value)
			}
		case fieldProduct:
			if f.Product == nil {
				f.Product = strPtr(value)
			}
		case fieldQuantity:
			fillAmount(&f.Quantity, value)
		case fieldUnitPrice:
			fillAmount(&f.UnitPrice, value)
		case fieldSubtotal:
			fillAmount(&f.Subtotal, value)
		case fieldVATRate:
			if f.VATRate == nil {
				if v, ok := ParsePercent(value); ok {
					f.VATRate = &v
				}
			}
		case fieldVATAmount:
			fillAmount(&f.VATAmount, value)
		case fieldTotal:
			fillAmount(&f.TotalGross, value)
		case fieldIBAN:
			if f.BankIBAN == nil {
				if iban, ok := NormalizeIBAN(value); ok {
					f.BankIBAN = &iban
				}
			}
		case fieldBIC:
			if f.BankBIC == nil {
				if m := bicValue.FindString(strings.ToUpper(value)); m != "" {
					f.BankBIC = &m
				}
			}
		case fieldBankName:
			if f.BankName == nil {
				f.BankName = strPtr(value)
			}
		}
	}
}

var bicValue = regexp.MustCompile(`\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`)

func fillAmount(dst **float64, value string) {
	if *dst != nil {
		return
	}
	if v, ok := ParseAmount(value); ok {
		*dst = &v
	}
}
