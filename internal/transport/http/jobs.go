package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bb-booking/beautyboosters/internal/app"
	"github.com/bb-booking/beautyboosters/internal/domain"
)

// BookingAPI is the minimal interface needed for job intake and reads.
type BookingAPI interface {
	CreateJob(ctx context.Context, actor domain.Actor, in app.CreateJobInput) (app.CreateJobResult, error)
	GetJob(ctx context.Context, actor domain.Actor, id string) (app.JobView, error)
	ListJobs(ctx context.Context, actor domain.Actor, status domain.JobStatus, limit int) ([]domain.Job, error)
	Candidates(ctx context.Context, actor domain.Actor, jobID string) ([]domain.Booster, error)
}

type MatchingAPI interface {
	AutoAssign(ctx context.Context, actor domain.Actor, jobID string) (app.AutoAssignResult, error)
	Broadcast(ctx context.Context, actor domain.Actor, jobID string) (app.BroadcastResult, error)
	AssignManual(ctx context.Context, actor domain.Actor, jobID, boosterID string) (domain.SlotToken, error)
}

type ResponseAPI interface {
	Respond(ctx context.Context, actor domain.Actor, in app.RespondInput) (app.RespondResult, error)
	Apply(ctx context.Context, actor domain.Actor, jobID, boosterID string) (app.ApplyResult, error)
}

type LifecycleAPI interface {
	Confirm(ctx context.Context, actor domain.Actor, jobID string) (domain.Job, error)
	Complete(ctx context.Context, actor domain.Actor, jobID string, finalAmount *int64) (app.CompleteResult, error)
	Cancel(ctx context.Context, actor domain.Actor, jobID, reason string) (app.CancelResult, error)
}

type handlers struct {
	bookings  BookingAPI
	matching  MatchingAPI
	responses ResponseAPI
	lifecycle LifecycleAPI
	discounts DiscountValidator
	events    EventSubscriber
	logger    *slog.Logger
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch status := writeDomainError(w, err); {
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	case status == http.StatusPaymentRequired:
		h.logger.Warn("payment request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

// decodeBody reads a JSON body. An empty body leaves v untouched when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

type createJobRequest struct {
	CustomerID    string   `json:"customer_id"`
	ClientType    string   `json:"client_type"`
	Source        string   `json:"source"`
	Specialties   []string `json:"specialties"`
	RequiredSlots int      `json:"required_slots"`
	StartsAt      string   `json:"starts_at"`
	EndsAt        string   `json:"ends_at"`
	Address       string   `json:"address"`
	Lat           float64  `json:"lat"`
	Lng           float64  `json:"lng"`
	AmountMinor   int64    `json:"amount_minor"`
	Currency      string   `json:"currency"`
	DiscountCode  string   `json:"discount_code"`
	PaymentToken  string   `json:"payment_token"`
	Notes         string   `json:"notes"`
	AutoAssign    bool     `json:"auto_assign"`
}

type createJobResponse struct {
	Job       jobResponse      `json:"job"`
	Payment   *paymentResponse `json:"payment"`
	Reserved  []slotResponse   `json:"reserved,omitempty"`
	Escalated bool             `json:"escalated,omitempty"`
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createJobRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.StartsAt == "" || req.EndsAt == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "starts_at and ends_at are required")
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidTime, "invalid starts_at format")
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidTime, "invalid ends_at format")
		return
	}
	customerID := req.CustomerID
	if customerID == "" && actor.Role == domain.RoleCustomer {
		customerID = actor.ID
	}

	res, err := h.bookings.CreateJob(r.Context(), actor, app.CreateJobInput{
		CustomerID:    customerID,
		ClientType:    domain.ClientType(req.ClientType),
		Source:        domain.JobSource(req.Source),
		Specialties:   req.Specialties,
		RequiredSlots: req.RequiredSlots,
		Window:        domain.TimeWindow{Start: startsAt.UTC(), End: endsAt.UTC()},
		Location:      domain.Location{Address: req.Address, Lat: req.Lat, Lng: req.Lng},
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
		DiscountCode:  req.DiscountCode,
		PaymentToken:  req.PaymentToken,
		Notes:         req.Notes,
		AutoAssign:    req.AutoAssign,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	payment := toPaymentResponse(res.Payment)
	payment.ClientSecret = res.Payment.ClientSecret
	resp := createJobResponse{Job: toJobResponse(res.Job), Payment: payment}
	if res.AutoAssign != nil {
		resp.Reserved = toSlotResponses(res.AutoAssign.Reserved)
		resp.Escalated = res.AutoAssign.Escalated
	}
	writeJSON(w, http.StatusCreated, resp)
}

type jobViewResponse struct {
	Job         jobResponse          `json:"job"`
	Assignments []assignmentResponse `json:"assignments"`
	Payment     *paymentResponse     `json:"payment,omitempty"`
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	view, err := h.bookings.GetJob(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := jobViewResponse{
		Job:         toJobResponse(view.Job),
		Assignments: toAssignmentResponses(view.Assignments),
	}
	if view.Payment != nil {
		resp.Payment = toPaymentResponse(*view.Payment)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) candidates(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	boosters, err := h.bookings.Candidates(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": toBoosterResponses(boosters)})
}

type staffingResponse struct {
	Status    string         `json:"status"`
	Job       jobResponse    `json:"job"`
	Reserved  []slotResponse `json:"reserved,omitempty"`
	Notified  []string       `json:"notified,omitempty"`
	Escalated bool           `json:"escalated"`
	Message   string         `json:"message,omitempty"`
}

// writeStaffing answers 202 with the finding_booster code when matching ran
// out of candidates; the job is then in the manual queue.
func writeStaffing(w http.ResponseWriter, resp staffingResponse) {
	if resp.Escalated {
		resp.Status = codeFindingBooster
		resp.Message = findingBoosterMessage
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	resp.Status = "ok"
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) autoAssign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	res, err := h.matching.AutoAssign(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeStaffing(w, staffingResponse{
		Job:       toJobResponse(res.Job),
		Reserved:  toSlotResponses(res.Reserved),
		Escalated: res.Escalated,
	})
}

func (h *handlers) broadcast(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	res, err := h.matching.Broadcast(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeStaffing(w, staffingResponse{
		Job:       toJobResponse(res.Job),
		Notified:  res.Notified,
		Escalated: res.Escalated,
	})
}

type boosterRequest struct {
	BoosterID string `json:"booster_id"`
}

func (h *handlers) assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req boosterRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.BoosterID == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "booster_id is required")
		return
	}
	token, err := h.matching.AssignManual(r.Context(), actor, r.PathValue("id"), req.BoosterID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(token))
}

// boosterFor defaults the booster to the caller when a booster acts for itself.
func boosterFor(actor domain.Actor, requested string) string {
	if requested == "" && actor.Role == domain.RoleBooster {
		return actor.ID
	}
	return requested
}

func (h *handlers) apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req boosterRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	boosterID := boosterFor(actor, req.BoosterID)
	if boosterID == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "booster_id is required")
		return
	}
	res, err := h.responses.Apply(r.Context(), actor, r.PathValue("id"), boosterID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"slot": toSlotResponse(res.Token),
		"job":  toJobResponse(res.Job),
	})
}

type respondRequest struct {
	BoosterID string `json:"booster_id"`
	Action    string `json:"action"`
}

type respondResponse struct {
	Outcome     string             `json:"outcome"`
	Assignment  assignmentResponse `json:"assignment"`
	Job         jobResponse        `json:"job"`
	Replacement *slotResponse      `json:"replacement,omitempty"`
	Escalated   bool               `json:"escalated,omitempty"`
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req respondRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	boosterID := boosterFor(actor, req.BoosterID)
	if boosterID == "" {
		writeError(w, http.StatusBadRequest, codeMissingRequiredField, "booster_id is required")
		return
	}

	res, err := h.responses.Respond(r.Context(), actor, app.RespondInput{
		JobID:     r.PathValue("id"),
		BoosterID: boosterID,
		Action:    domain.ResponseAction(strings.ToLower(req.Action)),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Outcome == app.OutcomeConflict {
		writeError(w, http.StatusConflict, codeAlreadyResponded, domain.ErrAlreadyResponded.Error())
		return
	}

	resp := respondResponse{
		Outcome:    string(res.Outcome),
		Assignment: toAssignmentResponse(res.Assignment),
		Job:        toJobResponse(res.Job),
		Escalated:  res.Escalated,
	}
	if res.Replacement != nil {
		slot := toSlotResponse(*res.Replacement)
		resp.Replacement = &slot
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	job, err := h.lifecycle.Confirm(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobResponse(job)})
}

type completeRequest struct {
	FinalAmountMinor *int64 `json:"final_amount_minor"`
}

func (h *handlers) complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	res, err := h.lifecycle.Complete(r.Context(), actor, r.PathValue("id"), req.FinalAmountMinor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":     toJobResponse(res.Job),
		"payment": toPaymentResponse(res.Payment),
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	res, err := h.lifecycle.Cancel(r.Context(), actor, r.PathValue("id"), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := map[string]any{
		"job":        toJobResponse(res.Job),
		"superseded": toAssignmentResponses(res.Superseded),
	}
	if res.Payment.ID != "" {
		resp["payment"] = toPaymentResponse(res.Payment)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid limit")
			return
		}
		limit = n
	}
	jobs, err := h.bookings.ListJobs(r.Context(), actor, domain.JobStatus(q.Get("status")), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}
