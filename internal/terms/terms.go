package terms

import (
	"regexp"
	"strconv"
	"time"
)

// PaymentTerm is a payment-term token drawn from a closed set.
type PaymentTerm string

const (
	DueOnReceipt PaymentTerm = "Due on Receipt"
	Net15        PaymentTerm = "Net 15"
	Net30        PaymentTerm = "Net 30"
	Net45        PaymentTerm = "Net 45"
	Net60        PaymentTerm = "Net 60"
)

var digits = regexp.MustCompile(`\d+`)

// All returns the supported payment terms in display order.
func All() []PaymentTerm {
	return []PaymentTerm{DueOnReceipt, Net15, Net30, Net45, Net60}
}

// Valid reports whether the token belongs to the supported set.
func Valid(term PaymentTerm) bool {
	switch term {
	case DueOnReceipt, Net15, Net30, Net45, Net60:
		return true
	}
	return false
}

// Days extracts the day offset encoded in the term token. Tokens without a
// numeric component ("Due on Receipt") resolve to zero.
func Days(term PaymentTerm) int {
	match := digits.FindString(string(term))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// DueDate derives the payment due date from an issue date and a term. The
// derivation is one-way: callers re-invoke it whenever either input changes
// and overwrite any previously held due date.
func DueDate(issue time.Time, term PaymentTerm) time.Time {
	return issue.AddDate(0, 0, Days(term))
}
