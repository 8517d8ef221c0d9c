// Package extraction defines the wire model of the document extraction
// service and the HTTP client that submits captured inputs to it.
package extraction

// ExtractedDocument is the structured content the service read out of a
// receipt. The service reports absence explicitly, so optional fields are
// pointers: nil means the extractor could not find the value.
type ExtractedDocument struct {
	DocumentType string    `json:"documentType"`
	Number       *string   `json:"number"`
	IssueDate    *string   `json:"issueDate"`
	Issuer       Issuer    `json:"issuer"`
	Customer     *Customer `json:"customer"`
	Items        []Item    `json:"items"`
	Totals       Totals    `json:"totals"`
}

// Issuer identifies the business that emitted the document.
type Issuer struct {
	TaxID     *string `json:"taxId"`
	LegalName string  `json:"legalName"`
}

// Customer is the buyer, when the document names one.
type Customer struct {
	Name     *string           `json:"name"`
	Document *CustomerDocument `json:"document"`
}

// CustomerDocument is the buyer's identity document.
type CustomerDocument struct {
	Kind   string  `json:"kind"`
	Number *string `json:"number"`
}

// Item is one purchase line.
type Item struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Totals carries the document's monetary summary. Tax is routinely
// absent on documents that carry none.
type Totals struct {
	Subtotal *float64 `json:"subtotal"`
	Tax      *float64 `json:"tax"`
	Total    *float64 `json:"total"`
}

// Result is one submission's outcome: the extracted document plus the
// service's own confidence (0-100) and the raw text it worked from.
type Result struct {
	Document   ExtractedDocument `json:"extractedData"`
	Confidence float64           `json:"confidence"`
	RawText    string            `json:"rawText"`
}
