package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

const (
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidTime          = "invalid_time"
	codeInvalidID            = "invalid_id"
	codeInvalidSlotCount     = "invalid_slot_count"
	codeInvalidWindow        = "invalid_window"
	codeInvalidAmount        = "invalid_amount"
	codeInvalidAction        = "invalid_action"
	codeInvalidStatus        = "invalid_status"
	codeInvalidClientType    = "invalid_client_type"
	codeUnknownSpecialty     = "unknown_specialty"
	codeJobNotFound          = "job_not_found"
	codeAssignmentNotFound   = "assignment_not_found"
	codeBoosterNotFound      = "booster_not_found"
	codeBoosterAlreadyOnJob  = "booster_already_on_job"
	codeBoosterNotQualified  = "booster_not_qualified"
	codeInvalidTransition    = "invalid_transition"
	codeAlreadyResponded     = "already_responded"
	codeReservationExpired   = "reservation_expired"
	codeFindingBooster       = "finding_booster"
	codeDiscountNotFound     = "discount_not_found"
	codeDiscountInactive     = "discount_inactive"
	codeDiscountExpired      = "discount_expired"
	codeDiscountBelowMinimum = "discount_below_minimum"
	codeDiscountExhausted    = "discount_exhausted"
	codeDiscountUsed         = "discount_customer_limit"
	codePaymentTokenRequired = "payment_token_required"
	codePaymentDeclined      = "payment_authorization_failed"
	codePaymentCapture       = "payment_capture_failed"
	codePaymentRelease       = "payment_release_failed"
	codePaymentOverCapture   = "payment_capture_exceeds_authorized"
	codePaymentInProgress    = "payment_in_progress"
	codePaymentNotFound      = "payment_not_found"
	codeUnauthenticated      = "unauthenticated"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

// Customers see one retryable message whenever staffing cannot complete.
const findingBoosterMessage = "we're finding you someone"

// Payment errors wrap provider text, which stays in the logs.
var fixedMessages = map[string]string{
	codeFindingBooster:       findingBoosterMessage,
	codePaymentDeclined:      "payment could not be authorized",
	codePaymentCapture:       "payment could not be captured",
	codePaymentRelease:       "payment hold could not be released",
	codePaymentOverCapture:   "capture amount exceeds the authorized amount",
	codePaymentTokenRequired: "a payment method is required",
	codePaymentInProgress:    "payment is being processed",
	codePaymentNotFound:      "payment not found",
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Payment entries come before staffing ones and never share codes with them.
var errorMappings = []errorMapping{
	{domain.ErrPaymentAuthorizationFailed, http.StatusPaymentRequired, codePaymentDeclined},
	{domain.ErrPaymentCaptureFailed, http.StatusPaymentRequired, codePaymentCapture},
	{domain.ErrPaymentReleaseFailed, http.StatusPaymentRequired, codePaymentRelease},
	{domain.ErrCaptureExceedsAuthorized, http.StatusPaymentRequired, codePaymentOverCapture},
	{domain.ErrPaymentTokenRequired, http.StatusPaymentRequired, codePaymentTokenRequired},
	{domain.ErrPaymentInProgress, http.StatusConflict, codePaymentInProgress},
	{domain.ErrPaymentNotFound, http.StatusNotFound, codePaymentNotFound},

	{domain.ErrNoCandidateAvailable, http.StatusAccepted, codeFindingBooster},
	{domain.ErrCapacityExceeded, http.StatusConflict, codeFindingBooster},
	{domain.ErrJobNotStaffable, http.StatusConflict, codeFindingBooster},
	{domain.ErrReservationExpired, http.StatusConflict, codeReservationExpired},
	{domain.ErrAlreadyResponded, http.StatusConflict, codeAlreadyResponded},
	{domain.ErrBoosterAlreadyOnJob, http.StatusConflict, codeBoosterAlreadyOnJob},
	{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrBoosterNotQualified, http.StatusUnprocessableEntity, codeBoosterNotQualified},

	{domain.ErrDiscountNotFound, http.StatusUnprocessableEntity, codeDiscountNotFound},
	{domain.ErrDiscountInactive, http.StatusUnprocessableEntity, codeDiscountInactive},
	{domain.ErrDiscountExpired, http.StatusUnprocessableEntity, codeDiscountExpired},
	{domain.ErrDiscountBelowMinimum, http.StatusUnprocessableEntity, codeDiscountBelowMinimum},
	{domain.ErrDiscountExhausted, http.StatusUnprocessableEntity, codeDiscountExhausted},
	{domain.ErrDiscountCustomerLimit, http.StatusUnprocessableEntity, codeDiscountUsed},

	{domain.ErrJobNotFound, http.StatusNotFound, codeJobNotFound},
	{domain.ErrAssignmentNotFound, http.StatusNotFound, codeAssignmentNotFound},
	{domain.ErrBoosterNotFound, http.StatusNotFound, codeBoosterNotFound},

	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidSlotCount, http.StatusBadRequest, codeInvalidSlotCount},
	{domain.ErrInvalidWindow, http.StatusBadRequest, codeInvalidWindow},
	{domain.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{domain.ErrInvalidAction, http.StatusBadRequest, codeInvalidAction},
	{domain.ErrInvalidStatus, http.StatusBadRequest, codeInvalidStatus},
	{domain.ErrInvalidClientType, http.StatusBadRequest, codeInvalidClientType},
	{domain.ErrUnknownSpecialty, http.StatusBadRequest, codeUnknownSpecialty},
	{domain.ErrCustomerRequired, http.StatusBadRequest, codeMissingRequiredField},

	{domain.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthenticated},
	{domain.ErrForbidden, http.StatusForbidden, codeForbidden},
}

// writeDomainError maps engine errors to status codes and reports the status
// written. Unknown errors become a 500 and never leak their text.
func writeDomainError(w http.ResponseWriter, err error) int {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		msg, ok := fixedMessages[m.code]
		if !ok {
			msg = err.Error()
		}
		writeError(w, m.status, m.code, msg)
		return m.status
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
