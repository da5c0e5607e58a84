package terms

import (
	"testing"
	"time"
)

func TestDays(t *testing.T) {
	cases := map[PaymentTerm]int{
		DueOnReceipt: 0,
		Net15:        15,
		Net30:        30,
		Net45:        45,
		Net60:        60,
	}
	for term, want := range cases {
		if got := Days(term); got != want {
			t.Fatalf("Days(%q) = %d, want %d", term, got, want)
		}
	}
}

func TestDueDateNet30(t *testing.T) {
	issue := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	if got := DueDate(issue, Net30); !got.Equal(want) {
		t.Fatalf("DueDate = %s, want %s", got, want)
	}
}

func TestDueDateDueOnReceipt(t *testing.T) {
	issue := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	if got := DueDate(issue, DueOnReceipt); !got.Equal(issue) {
		t.Fatalf("DueDate = %s, want issue date %s", got, issue)
	}
}

func TestValid(t *testing.T) {
	for _, term := range All() {
		if !Valid(term) {
			t.Fatalf("expected %q to be valid", term)
		}
	}
	if Valid("Net 90") {
		t.Fatal("expected Net 90 to be rejected")
	}
}
