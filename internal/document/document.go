package document

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-billing/internal/pricing"
	"github.com/noah-isme/backend-billing/internal/terms"
)

// Type determines which tax model a document uses. Invoices tax each line at
// its own rate; purchase orders apply one rate to the net subtotal and may
// carry a shipping cost.
type Type string

const (
	TypeInvoice       Type = "invoice"
	TypePurchaseOrder Type = "purchase_order"
)

var (
	// ErrNotFound indicates the requested document could not be located.
	ErrNotFound = errors.New("document not found")
	// ErrItemNotFound indicates the referenced line item does not exist.
	ErrItemNotFound = errors.New("line item not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidType reports whether the document type is supported.
func ValidType(t Type) bool {
	return t == TypeInvoice || t == TypePurchaseOrder
}

// ItemField enumerates the editable line item fields.
type ItemField string

const (
	FieldDescription ItemField = "description"
	FieldQuantity    ItemField = "quantity"
	FieldUnitRate    ItemField = "unitRate"
	FieldTaxRate     ItemField = "taxRate"
)

// LineItem is one editable document row. Amount is derived from quantity and
// unit rate on every update and is never edited directly.
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitRate    decimal.Decimal `json:"unitRate"`
	TaxRate     decimal.Decimal `json:"taxRate"`
	Amount      decimal.Decimal `json:"amount"`
}

// Snapshot is the atomically republished read model of a document. All
// derived fields are consistent with each other at the moment it is taken.
type Snapshot struct {
	ID            string            `json:"id"`
	Type          Type              `json:"type"`
	Items         []LineItem        `json:"items"`
	DiscountKind  string            `json:"discountKind"`
	DiscountValue decimal.Decimal   `json:"discountValue"`
	TaxRate       decimal.Decimal   `json:"taxRate"`
	IssueDate     time.Time         `json:"issueDate"`
	PaymentTerm   terms.PaymentTerm `json:"paymentTerm"`
	DueDate       time.Time         `json:"dueDate"`
	Totals        pricing.Totals    `json:"totals"`
}

// Document owns the mutable billing inputs and their derived totals. Every
// mutation recomputes the snapshot synchronously before returning, so no
// caller ever observes a stale amount or a partially updated summary.
type Document struct {
	mu       sync.Mutex
	id       string
	docType  Type
	items    []LineItem
	discount pricing.DiscountSpec
	taxRate  decimal.Decimal
	shipping decimal.Decimal
	issue    time.Time
	term     terms.PaymentTerm
	due      time.Time
	totals   pricing.Totals
}

// New creates an empty document of the given type.
func New(docType Type, issue time.Time, term terms.PaymentTerm) (*Document, error) {
	if !ValidType(docType) {
		return nil, ErrInvalidInput
	}
	if !terms.Valid(term) {
		return nil, ErrInvalidInput
	}
	d := &Document{
		id:       uuid.NewString(),
		docType:  docType,
		discount: pricing.DiscountSpec{Kind: pricing.DiscountPercent, Value: decimal.Zero},
		issue:    issue,
		term:     term,
	}
	d.recompute()
	return d, nil
}

// Restore rebuilds a document from a persisted snapshot. Derived fields are
// recomputed from the inputs; the persisted totals are only a cache.
func Restore(snap Snapshot) (*Document, error) {
	if !ValidType(snap.Type) {
		return nil, ErrInvalidInput
	}
	term := snap.PaymentTerm
	if !terms.Valid(term) {
		term = terms.DueOnReceipt
	}
	kind := pricing.DiscountKind(snap.DiscountKind)
	if kind != pricing.DiscountPercent && kind != pricing.DiscountFixed {
		kind = pricing.DiscountPercent
	}
	d := &Document{
		id:       snap.ID,
		docType:  snap.Type,
		items:    make([]LineItem, len(snap.Items)),
		discount: pricing.DiscountSpec{Kind: kind, Value: snap.DiscountValue},
		taxRate:  snap.TaxRate,
		shipping: snap.Totals.Shipping,
		issue:    snap.IssueDate,
		term:     term,
	}
	for i, it := range snap.Items {
		it.Amount = it.Quantity.Mul(it.UnitRate)
		d.items[i] = it
	}
	d.recompute()
	return d, nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Type returns the document type.
func (d *Document) Type() Type { return d.docType }

// AddItem appends a new zero-valued line item and returns it.
func (d *Document) AddItem() LineItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	item := LineItem{
		ID:       uuid.NewString(),
		Quantity: decimal.Zero,
		UnitRate: decimal.Zero,
		TaxRate:  decimal.Zero,
		Amount:   decimal.Zero,
	}
	d.items = append(d.items, item)
	d.recompute()
	return item
}

// RemoveItem deletes the line item with the given id.
func (d *Document) RemoveItem(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, it := range d.items {
		if it.ID == id {
			d.items = append(d.items[:i], d.items[i+1:]...)
			d.recompute()
			return nil
		}
	}
	return ErrItemNotFound
}

// UpdateItem edits one field of a line item. Numeric fields parse the value
// as a decimal; non-numeric or negative input is rejected and the prior valid
// value kept, which is local recovery rather than a fault. Quantity and unit
// rate updates recompute the line amount before the update completes.
func (d *Document) UpdateItem(id string, field ItemField, value string) (LineItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := -1
	for i, it := range d.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LineItem{}, ErrItemNotFound
	}
	item := &d.items[idx]
	switch field {
	case FieldDescription:
		item.Description = value
	case FieldQuantity:
		if v, ok := parseNonNegative(value); ok {
			item.Quantity = v
		}
	case FieldUnitRate:
		if v, ok := parseNonNegative(value); ok {
			item.UnitRate = v
		}
	case FieldTaxRate:
		if v, ok := parseNonNegative(value); ok {
			item.TaxRate = v
		}
	default:
		return LineItem{}, ErrInvalidInput
	}
	item.Amount = item.Quantity.Mul(item.UnitRate)
	d.recompute()
	return *item, nil
}

// SetDiscount replaces the document discount spec. An unknown kind indicates
// a caller bug and is rejected; a negative value is clamped to zero.
func (d *Document) SetDiscount(spec pricing.DiscountSpec) error {
	if spec.Kind != pricing.DiscountPercent && spec.Kind != pricing.DiscountFixed {
		return ErrInvalidInput
	}
	if spec.Value.Sign() < 0 {
		spec.Value = decimal.Zero
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discount = spec
	d.recompute()
	return nil
}

// SetTaxRate sets the global tax rate. Only purchase orders use the global
// model; invoices carry per-item rates instead.
func (d *Document) SetTaxRate(rate decimal.Decimal) error {
	if d.docType != TypePurchaseOrder {
		return ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if rate.Sign() >= 0 {
		d.taxRate = rate
	}
	d.recompute()
	return nil
}

// SetShipping sets the shipping cost. Invoices have no shipping field.
func (d *Document) SetShipping(v decimal.Decimal) error {
	if d.docType != TypePurchaseOrder {
		return ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if v.Sign() >= 0 {
		d.shipping = v
	}
	d.recompute()
	return nil
}

// SetIssueDate replaces the issue date and re-derives the due date.
func (d *Document) SetIssueDate(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.issue = t
	d.recompute()
}

// SetPaymentTerm replaces the payment term and re-derives the due date.
func (d *Document) SetPaymentTerm(term terms.PaymentTerm) error {
	if !terms.Valid(term) {
		return ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.term = term
	d.recompute()
	return nil
}

// Snapshot returns a consistent copy of the document and its derived fields.
func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	items := make([]LineItem, len(d.items))
	copy(items, d.items)
	return Snapshot{
		ID:            d.id,
		Type:          d.docType,
		Items:         items,
		DiscountKind:  string(d.discount.Kind),
		DiscountValue: d.discount.Value,
		TaxRate:       d.taxRate,
		IssueDate:     d.issue,
		PaymentTerm:   d.term,
		DueDate:       d.due,
		Totals:        d.totals,
	}
}

// Totals returns the current totals snapshot.
func (d *Document) Totals() pricing.Totals {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totals
}

func (d *Document) taxSpec() pricing.TaxSpec {
	if d.docType == TypePurchaseOrder {
		return pricing.TaxSpec{Model: pricing.TaxGlobalOnNet, Rate: d.taxRate}
	}
	return pricing.TaxSpec{Model: pricing.TaxPerItem}
}

// recompute republishes the totals and the due date. Callers hold d.mu.
func (d *Document) recompute() {
	lines := make([]pricing.Line, len(d.items))
	for i, it := range d.items {
		lines[i] = pricing.Line{Amount: it.Amount, TaxRate: it.TaxRate}
	}
	d.totals = pricing.Compute(lines, d.discount, d.taxSpec(), d.shipping)
	d.due = terms.DueDate(d.issue, d.term)
}

func parseNonNegative(value string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(value)
	if err != nil || v.Sign() < 0 {
		return decimal.Decimal{}, false
	}
	return v, true
}
