package knowledge

import (
	_ "embed"
)

// TermsDocumentID is the id under which the bundled terms of service are ingested.
const TermsDocumentID = "booking-terms.txt"

//go:embed assets/booking-terms.txt
var bookingTerms string

// TermsDocument returns the terms of service shipped with the binary.
func TermsDocument() Document {
	return Document{ID: TermsDocumentID, Text: bookingTerms}
}
