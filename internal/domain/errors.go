package domain

import "errors"

// Staffing errors.
var (
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrAlreadyResponded     = errors.New("already responded")
	ErrNoCandidateAvailable = errors.New("no candidate available")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrJobNotStaffable      = errors.New("job not staffable")
)

// Payment errors. These are kept apart from staffing errors so the two
// concerns never share a code path in diagnostics.
var (
	ErrPaymentAuthorizationFailed = errors.New("payment authorization failed")
	ErrPaymentCaptureFailed       = errors.New("payment capture failed")
	ErrPaymentReleaseFailed       = errors.New("payment release failed")
	ErrCaptureExceedsAuthorized   = errors.New("capture amount exceeds authorized amount")
	ErrPaymentNotFound            = errors.New("payment authorization not found")
	ErrPaymentInProgress          = errors.New("payment operation already in progress")
)

// Discount validation errors.
var (
	ErrDiscountNotFound      = errors.New("discount code not found")
	ErrDiscountInactive      = errors.New("discount code inactive")
	ErrDiscountExpired       = errors.New("discount code expired")
	ErrDiscountBelowMinimum  = errors.New("amount below discount minimum")
	ErrDiscountExhausted     = errors.New("discount code fully redeemed")
	ErrDiscountCustomerLimit = errors.New("discount code already used by customer")
)

// Lookup and validation errors.
var (
	ErrJobNotFound          = errors.New("job not found")
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrBoosterNotFound      = errors.New("booster not found")
	ErrBoosterAlreadyOnJob  = errors.New("booster already holds a slot on this job")
	ErrBoosterNotQualified  = errors.New("booster does not qualify for this job")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidSlotCount     = errors.New("required slots must be positive")
	ErrInvalidWindow        = errors.New("job window end must be after start")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidAction        = errors.New("invalid response action")
	ErrInvalidStatus        = errors.New("invalid job status")
	ErrUnknownSpecialty     = errors.New("unknown specialty")
	ErrInvalidClientType    = errors.New("invalid client type")
	ErrCustomerRequired     = errors.New("customer id required")
	ErrForbidden            = errors.New("forbidden")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrPaymentTokenRequired = errors.New("payment token required")
)
