// Package render projects extraction results into operator-facing text.
// Everything here is a pure function of the result; nothing is mutated
// and nothing is validated.
package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rcanales/recibo-capture/internal/extraction"
)

// Placeholders for absent values.
const (
	NotDetected   = "No detectado"
	NotApplicable = "No aplica"
)

// View is the display projection of one extraction result. Every field
// is final display text; the page concatenates, never interprets.
type View struct {
	DocumentType     string     `json:"documentType"`
	Number           string     `json:"number"`
	IssueDate        string     `json:"issueDate"`
	IssuerTaxID      string     `json:"issuerTaxId"`
	IssuerName       string     `json:"issuerName"`
	CustomerName     string     `json:"customerName"`
	CustomerDocument string     `json:"customerDocument"`
	Items            []ItemView `json:"items,omitempty"`
	Subtotal         string     `json:"subtotal"`
	Tax              string     `json:"tax"`
	Total            string     `json:"total"`
	Confidence       string     `json:"confidence"`
	RawText          string     `json:"rawText"`
}

// ItemView is one purchase line ready for display.
type ItemView struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	LineTotal   string `json:"lineTotal"`
}

// Project maps a result to its display view. A nil result yields a nil
// view: the page omits the whole panel.
func Project(res *extraction.Result) *View {
	if res == nil {
		return nil
	}
	doc := res.Document
	v := &View{
		DocumentType:     textOr(doc.DocumentType),
		Number:           stringOr(doc.Number),
		IssueDate:        stringOr(doc.IssueDate),
		IssuerTaxID:      stringOr(doc.Issuer.TaxID),
		IssuerName:       textOr(doc.Issuer.LegalName),
		CustomerName:     NotDetected,
		CustomerDocument: NotDetected,
		Subtotal:         moneyOr(doc.Totals.Subtotal, NotDetected),
		Tax:              moneyOr(doc.Totals.Tax, NotApplicable),
		Total:            moneyOr(doc.Totals.Total, NotDetected),
		Confidence:       strconv.FormatFloat(res.Confidence, 'f', -1, 64) + "%",
		RawText:          res.RawText,
	}
	if c := doc.Customer; c != nil {
		v.CustomerName = stringOr(c.Name)
		if d := c.Document; d != nil {
			v.CustomerDocument = customerDocument(d)
		}
	}
	for _, item := range doc.Items {
		v.Items = append(v.Items, ItemView{
			Description: textOr(item.Description),
			Quantity:    strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			UnitPrice:   Money(item.UnitPrice),
			LineTotal:   Money(lineTotal(item.Quantity, item.UnitPrice)),
		})
	}
	return v
}

// Money renders an amount in soles, always two decimals.
func Money(v float64) string {
	return fmt.Sprintf("S/ %.2f", v)
}

// lineTotal recomputes quantity times unit price, rounded to cents. The
// wire is never trusted for this value.
func lineTotal(quantity, unitPrice float64) float64 {
	return math.Round(quantity*unitPrice*100) / 100
}

func customerDocument(d *extraction.CustomerDocument) string {
	number := stringOr(d.Number)
	if d.Kind == "" {
		return number
	}
	return d.Kind + " " + number
}

// stringOr renders an optional string.
func stringOr(s *string) string {
	if s == nil || *s == "" {
		return NotDetected
	}
	return *s
}

// textOr renders a required string that may still arrive empty.
func textOr(s string) string {
	if s == "" {
		return NotDetected
	}
	return s
}

func moneyOr(v *float64, placeholder string) string {
	if v == nil {
		return placeholder
	}
	return Money(*v)
}
