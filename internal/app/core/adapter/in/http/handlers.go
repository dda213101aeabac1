package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-khata-ledger/internal/app/auth"
	"github.com/JoeShih716/go-khata-ledger/internal/app/core/domain"
)

func (h *Handler) startSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	exp, err := h.phone.StartSignIn(r.Context(), req.Mobile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]time.Time{"expiresAt": exp})
}

func (h *Handler) verifySignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.phone.VerifySignIn(r.Context(), req.Mobile, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ownerId":   s.OwnerID,
		"token":     s.Token,
		"expiresAt": s.ExpiresAt,
	})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.core.ListCustomers(r.Context(), auth.OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]customerJSON, 0, len(customers))
	for i := range customers {
		out = append(out, newCustomerJSON(&customers[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": out})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.core.CreateCustomer(r.Context(), auth.OwnerFromContext(r.Context()), domain.CustomerInput{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": newCustomerJSON(c)})
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.core.GetCustomer(r.Context(), auth.OwnerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": newCustomerJSON(c)})
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateCustomerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.core.UpdateCustomer(r.Context(), auth.OwnerFromContext(r.Context()), id, domain.CustomerPatch{
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": newCustomerJSON(c)})
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.core.DeleteCustomer(r.Context(), auth.OwnerFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addTransaction 新增交易
// 帶 Idempotency-Key 時以它作為交易 ID；重送回 200 且 replayed=true，新交易回 201
func (h *Handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addTransactionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var in domain.TransactionInput
	if key := r.Header.Get(IdempotencyHeader); key != "" {
		if in.ID, err = domain.ParseID(IdempotencyHeader, key); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if in.Kind, err = domain.ParseTransactionKind(req.Kind); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Amount, err = domain.ParseAmount(req.Amount.String()); err != nil {
		writeError(w, r, err)
		return
	}
	in.Notes = req.Notes

	receipt, err := h.core.AddTransaction(r.Context(), auth.OwnerFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if receipt.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, receiptJSON{
		Transaction: newTransactionJSON(&receipt.Transaction),
		Balance:     amount(receipt.Balance),
		Status:      string(domain.StatusOf(receipt.Balance)),
		Replayed:    receipt.Replayed,
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.core.Summary(r.Context(), auth.OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryJSON{
		TotalToCollect: amount(s.TotalToCollect),
		TotalToGive:    amount(s.TotalToGive),
		TotalCustomers: s.TotalCustomers,
	})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.core.Reconcile(r.Context(), auth.OwnerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReconciliationJSON(rec))
}

func (h *Handler) reconcileAll(w http.ResponseWriter, r *http.Request) {
	recs, err := h.core.ReconcileAll(r.Context(), auth.OwnerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reconciliationJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newReconciliationJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) generateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reminderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	text, err := h.core.GenerateReminder(r.Context(), auth.OwnerFromContext(r.Context()), id, req.BusinessName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// exportReport from / to 接受 RFC3339 或 YYYY-MM-DD
func (h *Handler) exportReport(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.core.ExportReport(r.Context(), auth.OwnerFromContext(r.Context()), id, from, to); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func customerID(r *http.Request) (uuid.UUID, error) {
	return domain.ParseID("customerId", chi.URLParam(r, "customerID"))
}

// decode 解析 JSON body；空 body 視為空物件
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &domain.ValidationError{Field: "body", Reason: "must be a valid JSON object"}
	}
	return nil
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &domain.ValidationError{Field: key, Reason: "must be RFC3339 or YYYY-MM-DD"}
}
