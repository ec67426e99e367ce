package models

import (
	"encoding/json"
	"time"
)

// GuestInput is the normalized guest shape built once at ingestion.
// Dates are kept as received and normalized when a payload is built.
type GuestInput struct {
	FullName        string `json:"fullName"`
	DocumentType    string `json:"documentType,omitempty"`
	DocumentNumber  string `json:"documentNumber,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	BirthDate       string `json:"birthDate,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	ResidenceCity   string `json:"residenceCity,omitempty"`
	OriginCity      string `json:"originCity,omitempty"`
	DestinationCity string `json:"destinationCity,omitempty"`
	OriginAddress   string `json:"originAddress,omitempty"`
	DestAddress     string `json:"destinationAddress,omitempty"`
	TravelReason    string `json:"travelReason,omitempty"`
	ArrivalDate     string `json:"arrivalDate,omitempty"`
	DepartureDate   string `json:"departureDate,omitempty"`
}

// RegistrationContext holds values shared by every guest of a reservation.
type RegistrationContext struct {
	CompanionCount  *int   `json:"companionCount,omitempty"`
	ResidenceCity   string `json:"residenceCity,omitempty"`
	OriginCity      string `json:"originCity,omitempty"`
	DestinationCity string `json:"destinationCity,omitempty"`
	TravelReason    string `json:"travelReason,omitempty"`
	CheckIn         string `json:"checkIn,omitempty"`
	CheckOut        string `json:"checkOut,omitempty"`
}

// CheckinSubmission is a guest self check-in after normalization.
type CheckinSubmission struct {
	ReservationNumber string
	Guest             GuestInput
	Companions        []GuestInput
	Documents         []string
}

type CheckinResponse struct {
	ID                int64  `json:"id"`
	ReservationNumber string `json:"reservationNumber"`
	ShareURL          string `json:"shareUrl"`
	RegistrationQueue bool   `json:"registrationQueued"`
}

type GuestFilter struct {
	Query  string
	Limit  int
	Offset int
}

type GuestDetail struct {
	Guest        GuestRecord          `json:"guest"`
	Passcodes    []PasscodeRecord     `json:"passcodes"`
	Registration *RegistrationSummary `json:"registration,omitempty"`
}

type UpdateShareURLRequest struct {
	ShareURL string `json:"shareUrl" binding:"required"`
}

type RevocationOutcome struct {
	LockID     int64  `json:"lockId"`
	PasscodeID int64  `json:"passcodeId"`
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
}

type DeleteGuestResult struct {
	ID          int64               `json:"id"`
	Revocations []RevocationOutcome `json:"revocations"`
}

// Sessions

type CreateSessionRequest struct {
	ReservationNumber string          `json:"reservationNumber" binding:"required"`
	Payload           json.RawMessage `json:"payload"`
}

type SaveProgressRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required"`
}

type SessionResponse struct {
	Token             string          `json:"token"`
	ReservationNumber string          `json:"reservationNumber"`
	ShareURL          string          `json:"shareUrl"`
	Payload           json.RawMessage `json:"payload"`
	ExpiresAt         time.Time       `json:"expiresAt"`
	FirstUsedAt       *time.Time      `json:"firstUsedAt,omitempty"`
}

// PIN provisioning

type ProvisionRequest struct {
	StartAt           int64  `json:"startAt"`
	EndAt             int64  `json:"endAt"`
	ReservationNumber string `json:"reservationNumber"`
	GuestRecordID     int64  `json:"guestRecordId"`
	RoomID            string `json:"roomId"`
	PIN               string `json:"pin"`
	Digits            int    `json:"digits"`
}

type LockOutcome struct {
	LockID     int64  `json:"lockId"`
	LockAlias  string `json:"lockAlias"`
	OK         bool   `json:"ok"`
	PasscodeID *int64 `json:"passcodeId"`
	Result     any    `json:"result"`
	Error      string `json:"error,omitempty"`
}

type ProvisionResult struct {
	PIN       string        `json:"pin"`
	Room      string        `json:"room"`
	RoomID    string        `json:"roomId"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Results   []LockOutcome `json:"results"`
}

type ProviderPasscode struct {
	PasscodeID int64  `json:"passcodeId"`
	PIN        string `json:"pin"`
	Name       string `json:"name"`
	StartAt    int64  `json:"startAt"`
	EndAt      int64  `json:"endAt"`
	Status     int    `json:"status"`
}

type LockPasscodes struct {
	LockID    int64              `json:"lockId"`
	LockAlias string             `json:"lockAlias"`
	Passcodes []ProviderPasscode `json:"passcodes"`
	Error     string             `json:"error,omitempty"`
}

// Registration pipeline

type CreateRegistrationRequest struct {
	Guests  []map[string]any    `json:"guests" binding:"required"`
	Context RegistrationContext `json:"context"`
}

type ProcessResult struct {
	ReservationNumber string `json:"reservationNumber"`
	Skipped           bool   `json:"skipped"`
	OK                bool   `json:"ok"`
	PrimaryCode       string `json:"primaryCode,omitempty"`
	Sent              int    `json:"sent"`
	Failed            int    `json:"failed"`
	Error             string `json:"error,omitempty"`
}

const (
	OverallOK      = "OK"
	OverallPending = "PENDING"
	OverallError   = "ERROR"
)

type RoleBreakdown struct {
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
	Error   int `json:"error"`
}

type RegistrationSummary struct {
	ReservationNumber string              `json:"reservationNumber"`
	Overall           string              `json:"overall"`
	Total             int                 `json:"total"`
	PrimaryStatus     *RegistrationStatus `json:"primaryStatus,omitempty"`
	PrimaryCode       *string             `json:"primaryCode,omitempty"`
	Secondary         RoleBreakdown       `json:"secondary"`
	LastAttemptAt     *time.Time          `json:"lastAttemptAt,omitempty"`
	LastError         *string             `json:"lastError,omitempty"`
}

type RetryResult struct {
	ReservationNumber string `json:"reservationNumber"`
	Reset             int64  `json:"reset"`
	Queued            bool   `json:"queued"`
}

// Lookup

const (
	SourceLocal   = "local"
	SourceBooking = "booking"
)

// Reservation is a booking-provider reservation flattened for pre-fill.
type Reservation struct {
	OrderID   string `json:"orderId"`
	GuestName string `json:"guestName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CheckIn   string `json:"checkIn"`
	CheckOut  string `json:"checkOut"`
	Adults    int    `json:"adults"`
	Children  int    `json:"children"`
	Room      string `json:"room"`
	Status    string `json:"status"`
}

type LookupResult struct {
	Source       string        `json:"source"`
	Guests       []GuestRecord `json:"guests,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
}
