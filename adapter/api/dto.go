package api

import (
	"time"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	commissionDomain "github.com/felixgeelhaar/bookline/internal/commission/domain"
)

// CreateBookingRequest is the body of POST /api/v1/bookings.
type CreateBookingRequest struct {
	CustomerID      string     `json:"customerId"`
	DurationMinutes int        `json:"durationMinutes"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	PriceMinor      int64      `json:"priceMinor"`
	Currency        string     `json:"currency"`
}

// DecisionRequest is the body of the accept and reject endpoints.
type DecisionRequest struct {
	ProviderID string `json:"providerId"`
	Reason     string `json:"reason,omitempty"`
}

// TransitionRequest is the body of a system transition.
type TransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// SubmitPaymentRequest carries the provider's payment reference.
type SubmitPaymentRequest struct {
	Reference string `json:"reference"`
}

// ActorRequest names who performs an administrative action.
type ActorRequest struct {
	Actor string `json:"actor,omitempty"`
	Note  string `json:"note,omitempty"`
}

// BookingResponse is the API representation of a booking.
type BookingResponse struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	CustomerID         string     `json:"customerId"`
	ProviderID         string     `json:"providerId,omitempty"`
	DurationMinutes    int        `json:"durationMinutes"`
	ScheduledAt        *time.Time `json:"scheduledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`
	PriceMinor         int64      `json:"priceMinor"`
	Currency           string     `json:"currency"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toBookingResponse(b *bookingDomain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                 b.ID().String(),
		Status:             string(b.Status()),
		CustomerID:         b.CustomerID().String(),
		DurationMinutes:    int(b.ServiceDuration() / time.Minute),
		ScheduledAt:        b.ScheduledAt(),
		CancellationReason: b.CancellationReason(),
		PriceMinor:         b.PriceMinor(),
		Currency:           b.Currency(),
		CreatedAt:          b.CreatedAt(),
		UpdatedAt:          b.UpdatedAt(),
	}
	if p := b.ProviderID(); p != nil {
		resp.ProviderID = p.String()
	}
	return resp
}

// CommissionResponse is the API representation of a commission record.
type CommissionResponse struct {
	ID               string     `json:"id"`
	BookingID        string     `json:"bookingId"`
	ProviderID       string     `json:"providerId"`
	AmountMinor      int64      `json:"amountMinor"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	DeadlineAt       time.Time  `json:"deadlineAt"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	ExpiredAt        *time.Time `json:"expiredAt,omitempty"`
}

func toCommissionResponse(r *commissionDomain.Record) CommissionResponse {
	return CommissionResponse{
		ID:               r.ID.String(),
		BookingID:        r.BookingID.String(),
		ProviderID:       r.ProviderID.String(),
		AmountMinor:      r.AmountMinor,
		Currency:         r.Currency,
		Status:           string(r.Status),
		DeadlineAt:       r.DeadlineAt,
		PaymentReference: r.PaymentReference,
		PaidAt:           r.PaidAt,
		ExpiredAt:        r.ExpiredAt,
	}
}

// AvailabilityResponse is the API representation of provider availability.
type AvailabilityResponse struct {
	ProviderID         string `json:"providerId"`
	Status             string `json:"status"`
	BookingEnabled     bool   `json:"bookingEnabled"`
	ScheduleEnabled    bool   `json:"scheduleEnabled"`
	DeactivationReason string `json:"deactivationReason,omitempty"`
	CanReceiveBookings bool   `json:"canReceiveBookings"`
}

func toAvailabilityResponse(a *commissionDomain.ProviderAvailability) AvailabilityResponse {
	return AvailabilityResponse{
		ProviderID:         a.ProviderID.String(),
		Status:             string(a.Status),
		BookingEnabled:     a.BookingEnabled,
		ScheduleEnabled:    a.ScheduleEnabled,
		DeactivationReason: a.DeactivationReason,
		CanReceiveBookings: a.CanReceiveBookings(),
	}
}
