package http

import (
	"context"
	"net/http"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

type DiscountValidator interface {
	Validate(ctx context.Context, code string, amountMinor int64, customerID string) (app.DiscountResult, error)
}

type validateDiscountRequest struct {
	Code        string `json:"code"`
	AmountMinor int64  `json:"amount_minor"`
	CustomerID  string `json:"customer_id"`
}

type validateDiscountResponse struct {
	Code          string `json:"code"`
	DiscountMinor int64  `json:"discount_minor"`
	FinalMinor    int64  `json:"final_minor"`
}

// validateDiscount previews a code against an amount. Nothing is redeemed;
// caps are counted at capture time.
func (h *handlers) validateDiscount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req validateDiscountRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "code is required")
		return
	}
	customerID := req.CustomerID
	if actor.Role == domain.RoleCustomer {
		customerID = actor.ID
	}

	res, err := h.discounts.Validate(r.Context(), req.Code, req.AmountMinor, customerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateDiscountResponse{
		Code:          res.Code,
		DiscountMinor: res.DiscountMinor,
		FinalMinor:    res.FinalMinor,
	})
}
