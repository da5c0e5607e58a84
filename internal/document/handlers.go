package document

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-billing/internal/common"
	"github.com/noah-isme/backend-billing/internal/pricing"
	"github.com/noah-isme/backend-billing/internal/terms"
)

const dateLayout = "2006-01-02"

// Handler wires the document service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Routes mounts the document endpoints on the provided router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/documents", h.Create)
	r.Route("/documents/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{itemID}", h.UpdateItem)
		r.Delete("/items/{itemID}", h.RemoveItem)
		r.Put("/discount", h.SetDiscount)
		r.Put("/tax", h.SetTax)
		r.Put("/shipping", h.SetShipping)
		r.Put("/terms", h.SetTerms)
		r.Post("/save", h.Save)
		r.Get("/autosave", h.AutosaveStatus)
	})
}

type createRequest struct {
	Type        string `json:"type" validate:"required,oneof=invoice purchase_order"`
	IssueDate   string `json:"issueDate" validate:"required"`
	PaymentTerm string `json:"paymentTerm" validate:"required"`
}

// Create opens a new empty document.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRequest
	if !h.decode(w, r, &payload) {
		return
	}
	issue, err := time.Parse(dateLayout, payload.IssueDate)
	if err != nil {
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid issue date", nil)
		return
	}
	doc, err := h.Svc.Create(r.Context(), Type(payload.Type), issue, terms.PaymentTerm(payload.PaymentTerm))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, snapshotView(doc.Snapshot()))
}

// Get returns the full document view including derived totals and due date.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, snapshotView(doc.Snapshot()))
}

// Close performs a final save and stops the document's autosave loop.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem appends a blank line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	item := doc.AddItem()
	h.Svc.RecordMutation(doc)
	common.Data(w, http.StatusCreated, map[string]any{
		"item":   itemView(item),
		"totals": totalsView(doc.Totals()),
	})
}

type updateItemRequest struct {
	Field string `json:"field" validate:"required,oneof=description quantity unitRate taxRate"`
	Value string `json:"value"`
}

// UpdateItem edits a single field of a line item and returns the recomputed totals.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload updateItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	item, err := doc.UpdateItem(chi.URLParam(r, "itemID"), ItemField(payload.Field), payload.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.Svc.RecordMutation(doc)
	common.Data(w, http.StatusOK, map[string]any{
		"item":   itemView(item),
		"totals": totalsView(doc.Totals()),
	})
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := doc.RemoveItem(chi.URLParam(r, "itemID")); err != nil {
		h.writeError(w, err)
		return
	}
	h.Svc.RecordMutation(doc)
	common.Data(w, http.StatusOK, map[string]any{"totals": totalsView(doc.Totals())})
}

type discountRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=percent fixed"`
	Value string `json:"value" validate:"required"`
}

// SetDiscount replaces the document discount spec.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload discountRequest
	if !h.decode(w, r, &payload) {
		return
	}
	value, err := decimal.NewFromString(payload.Value)
	if err != nil {
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid discount value", nil)
		return
	}
	spec := pricing.DiscountSpec{Kind: pricing.DiscountKind(payload.Kind), Value: value}
	if err := doc.SetDiscount(spec); err != nil {
		h.writeError(w, err)
		return
	}
	h.Svc.RecordMutation(doc)
	common.Data(w, http.StatusOK, map[string]any{"totals": totalsView(doc.Totals())})
}

type taxRequest struct {
	Rate string `json:"rate" validate:"required"`
}

// SetTax sets the global tax rate on a purchase order.
func (h *Handler) SetTax(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload taxRequest
	if !h.decode(w, r, &payload) {
		return
	}
	rate, err := decimal.NewFromString(payload.Rate)
	if err != nil {
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tax rate", nil)
		return
	}
	if err := doc.SetTaxRate(rate); err != nil {
		h.writeError(w, err)
		return
	}
	h.Svc.RecordMutation(doc)
	common.Data(w, http.StatusOK, map[string]any{"totals": totalsView(doc.Totals())})
}

type shippingRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// SetShipping sets the shipping cost on a purchase order.
func (h *Handler) SetShipping(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload shippingRequest
	if !h.decode(w, r, &payload) {
		return
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid shipping amount", nil)
		return
	}
	if err := doc.SetShipping(amount); err != nil {
		h.writeError(w, err)
		return
	}
	h.Svc.RecordMutation(doc)
	common.Data(w, http.StatusOK, map[string]any{"totals": totalsView(doc.Totals())})
}

type termsRequest struct {
	IssueDate   string `json:"issueDate"`
	PaymentTerm string `json:"paymentTerm"`
}

// SetTerms updates the issue date and/or payment term, re-deriving the due date.
func (h *Handler) SetTerms(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	var payload termsRequest
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.IssueDate == "" && payload.PaymentTerm == "" {
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "issueDate or paymentTerm required", nil)
		return
	}
	if payload.IssueDate != "" {
		issue, err := time.Parse(dateLayout, payload.IssueDate)
		if err != nil {
			common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid issue date", nil)
			return
		}
		doc.SetIssueDate(issue)
	}
	if payload.PaymentTerm != "" {
		if err := doc.SetPaymentTerm(terms.PaymentTerm(payload.PaymentTerm)); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.Svc.RecordMutation(doc)
	snap := doc.Snapshot()
	common.Data(w, http.StatusOK, map[string]any{
		"issueDate":   snap.IssueDate.Format(dateLayout),
		"paymentTerm": string(snap.PaymentTerm),
		"dueDate":     snap.DueDate.Format(dateLayout),
	})
}

// Save persists the current snapshot immediately.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Save(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, err)
			return
		}
		common.Error(w, http.StatusBadGateway, "SAVE_FAILED", "failed to save document", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AutosaveStatus reports the scheduler state for UI feedback.
func (h *Handler) AutosaveStatus(w http.ResponseWriter, r *http.Request) {
	state, lastSaved, err := h.Svc.AutosaveStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	data := map[string]any{"status": string(state)}
	if !lastSaved.IsZero() {
		data["lastSavedAt"] = lastSaved.Format(time.RFC3339)
	}
	common.Data(w, http.StatusOK, data)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Document, bool) {
	doc, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return doc, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(v); err != nil {
			common.Error(w, http.StatusBadRequest, "VALIDATION", "invalid payload", validationDetails(err))
			return false
		}
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.Error(w, http.StatusNotFound, "NOT_FOUND", "document not found", nil)
	case errors.Is(err, ErrItemNotFound):
		common.Error(w, http.StatusNotFound, "NOT_FOUND", "line item not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.Error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid input", nil)
	default:
		common.Error(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return map[string]any{"fields": fields}
}

func snapshotView(snap Snapshot) map[string]any {
	items := make([]map[string]any, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, itemView(it))
	}
	return map[string]any{
		"id":          snap.ID,
		"type":        string(snap.Type),
		"issueDate":   snap.IssueDate.Format(dateLayout),
		"paymentTerm": string(snap.PaymentTerm),
		"dueDate":     snap.DueDate.Format(dateLayout),
		"items":       items,
		"discount": map[string]any{
			"kind":  snap.DiscountKind,
			"value": snap.DiscountValue.String(),
		},
		"taxRate": snap.TaxRate.String(),
		"totals":  totalsView(snap.Totals),
	}
}

func itemView(it LineItem) map[string]any {
	return map[string]any{
		"id":          it.ID,
		"description": it.Description,
		"quantity":    it.Quantity.String(),
		"unitRate":    it.UnitRate.String(),
		"taxRate":     it.TaxRate.String(),
		"amount":      it.Amount.String(),
	}
}

func totalsView(t pricing.Totals) map[string]any {
	return map[string]any{
		"subtotal": t.Subtotal.String(),
		"discount": t.Discount.String(),
		"tax":      t.Tax.String(),
		"shipping": t.Shipping.String(),
		"total":    t.Total.String(),
	}
}
