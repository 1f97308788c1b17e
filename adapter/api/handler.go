package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	bookingApp "github.com/felixgeelhaar/bookline/internal/booking/application"
	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	commissionApp "github.com/felixgeelhaar/bookline/internal/commission/application"
	commissionDomain "github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/pkg/config"
	"github.com/google/uuid"
)

// BookingService is the booking lifecycle as seen by the API.
type BookingService interface {
	Create(ctx context.Context, cmd bookingApp.CreateBookingCommand) (*bookingDomain.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error)
	Decide(ctx context.Context, action bookingDomain.Action, bookingID, providerID uuid.UUID, reason string) (*bookingDomain.Booking, error)
	Advance(ctx context.Context, bookingID uuid.UUID, target bookingDomain.Status, reason string) (*bookingDomain.Booking, error)
}

// CommissionService settles commission records.
type CommissionService interface {
	Get(ctx context.Context, id uuid.UUID) (*commissionDomain.Record, error)
	SubmitPayment(ctx context.Context, id uuid.UUID, reference string) (*commissionDomain.Record, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, actor string) (*commissionDomain.Record, error)
}

// ProviderService lifts commission lockouts.
type ProviderService interface {
	Reactivate(ctx context.Context, cmd commissionApp.ReactivateCommand) (*commissionDomain.ProviderAvailability, error)
}

// EnforcementRunner runs one commission deadline pass.
type EnforcementRunner interface {
	Run(ctx context.Context) (*commissionApp.RunSummary, error)
}

// Handler serves booking, commission and provider requests.
type Handler struct {
	bookings    BookingService
	commissions CommissionService
	providers   ProviderService
	enforcement EnforcementRunner
	logger      *slog.Logger
}

// HandlerConfig holds dependencies for the handler.
type HandlerConfig struct {
	Bookings    BookingService
	Commissions CommissionService
	Providers   ProviderService
	Enforcement EnforcementRunner
	Logger      *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		bookings:    cfg.Bookings,
		commissions: cfg.Commissions,
		providers:   cfg.Providers,
		enforcement: cfg.Enforcement,
		logger:      cfg.Logger,
	}
}

// CreateBooking handles POST /api/v1/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid customerId")
		return
	}

	b, err := h.bookings.Create(r.Context(), bookingApp.CreateBookingCommand{
		CustomerID:      customerID,
		ServiceDuration: time.Duration(req.DurationMinutes) * time.Minute,
		ScheduledAt:     req.ScheduledAt,
		PriceMinor:      req.PriceMinor,
		Currency:        req.Currency,
	})
	if err != nil {
		h.writeDomainError(w, "create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

// GetBooking handles GET /api/v1/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// AcceptBooking handles POST /api/v1/bookings/{id}/accept
func (h *Handler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, bookingDomain.ActionAccept)
}

// RejectBooking handles POST /api/v1/bookings/{id}/reject
func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, bookingDomain.ActionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action bookingDomain.Action) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid providerId")
		return
	}

	b, err := h.bookings.Decide(r.Context(), action, id, providerID, req.Reason)
	if err != nil {
		h.writeDomainError(w, string(action)+" booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// TransitionBooking handles POST /api/v1/bookings/{id}/transition
func (h *Handler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	target, err := bookingDomain.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.bookings.Advance(r.Context(), id, target, req.Reason)
	if err != nil {
		h.writeDomainError(w, "transition booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// GetCommission handles GET /api/v1/commissions/{id}
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.commissions.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionResponse(rec))
}

// SubmitPayment handles POST /api/v1/commissions/{id}/submit-payment
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SubmitPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeError(w, http.StatusBadRequest, "Payment reference is required")
		return
	}

	rec, err := h.commissions.SubmitPayment(r.Context(), id, req.Reference)
	if err != nil {
		h.writeDomainError(w, "submit payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionResponse(rec))
}

// ConfirmPayment handles POST /api/v1/commissions/{id}/confirm-payment
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.commissions.ConfirmPayment(r.Context(), id, req.Actor)
	if err != nil {
		h.writeDomainError(w, "confirm payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionResponse(rec))
}

// ReactivateProvider handles POST /api/v1/providers/{id}/reactivate
func (h *Handler) ReactivateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	avail, err := h.providers.Reactivate(r.Context(), commissionApp.ReactivateCommand{
		ProviderID: id,
		Actor:      req.Actor,
		Note:       req.Note,
	})
	if err != nil {
		h.writeDomainError(w, "reactivate provider", err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityResponse(avail))
}

// RunCommissionDeadlines handles POST /internal/jobs/commission-deadlines.
// The summary is returned on success and on failure alike.
func (h *Handler) RunCommissionDeadlines(w http.ResponseWriter, r *http.Request) {
	summary, err := h.enforcement.Run(r.Context())
	if err != nil {
		h.logger.Error("commission deadline run failed", "error", err)
		if summary == nil {
			summary = &commissionApp.RunSummary{Results: []commissionApp.RecordResult{}}
		}
		summary.Success = false
		summary.Error = err.Error()
		status := http.StatusInternalServerError
		if errors.Is(err, sharedDomain.ErrStoreUnavailable) && !errors.Is(err, config.ErrConfiguration) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeDomainError maps lifecycle errors to HTTP statuses. Unknown errors
// are logged and reported as 500 without detail.
func (h *Handler) writeDomainError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "operation", op, "error", err)
		writeError(w, status, "Failed to "+op)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bookingDomain.ErrBookingNotFound),
		errors.Is(err, commissionDomain.ErrCommissionNotFound),
		errors.Is(err, commissionDomain.ErrAvailabilityNotFound):
		return http.StatusNotFound
	case errors.Is(err, bookingDomain.ErrInvalidTransition),
		errors.Is(err, commissionDomain.ErrInvalidStatusTransition),
		errors.Is(err, commissionDomain.ErrCommissionExists),
		errors.Is(err, commissionDomain.ErrProviderNotDeactivated),
		errors.Is(err, commissionDomain.ErrReactivationBlocked):
		return http.StatusConflict
	case errors.Is(err, bookingDomain.ErrInvalidBooking),
		errors.Is(err, bookingDomain.ErrInvalidAction),
		errors.Is(err, bookingDomain.ErrInvalidStatus),
		errors.Is(err, commissionDomain.ErrInvalidCommission):
		return http.StatusBadRequest
	case errors.Is(err, sharedDomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody reads a JSON body into dst. An empty body leaves dst zero.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
