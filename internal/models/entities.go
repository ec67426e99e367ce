package models

import (
	"encoding/json"
	"time"
)

// GuestRecord is one check-in. ReservationNumber is the business key and
// never changes after creation.
type GuestRecord struct {
	ID                 int64           `json:"id" db:"id"`
	ReservationNumber  string          `json:"reservationNumber" db:"reservation_number"`
	FullName           string          `json:"fullName" db:"full_name"`
	DocumentType       string          `json:"documentType" db:"document_type"`
	DocumentNumber     string          `json:"documentNumber" db:"document_number"`
	Nationality        string          `json:"nationality" db:"nationality"`
	Phone              string          `json:"phone" db:"phone"`
	Email              string          `json:"email" db:"email"`
	OriginAddress      string          `json:"originAddress" db:"origin_address"`
	DestinationAddress string          `json:"destinationAddress" db:"destination_address"`
	TravelReason       string          `json:"travelReason" db:"travel_reason"`
	ArrivalDate        *time.Time      `json:"arrivalDate" db:"arrival_date"`
	DepartureDate      *time.Time      `json:"departureDate" db:"departure_date"`
	ShareURL           *string         `json:"shareUrl" db:"share_url"`
	LockPIN            *string         `json:"lockPin" db:"lock_pin"`
	Documents          []string        `json:"documents" db:"documents"`
	Companions         json.RawMessage `json:"companions,omitempty" db:"companions"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
}

// CheckinSession is a TTL-bound pre-fill snapshot addressed by Token.
// At most one session exists per reservation.
type CheckinSession struct {
	ID                int64           `json:"id" db:"id"`
	ReservationNumber string          `json:"reservationNumber" db:"reservation_number"`
	Token             string          `json:"token" db:"token"`
	Payload           json.RawMessage `json:"payload" db:"payload"`
	ExpiresAt         time.Time       `json:"expiresAt" db:"expires_at"`
	FirstUsedAt       *time.Time      `json:"firstUsedAt" db:"first_used_at"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// Expired reports whether the session can no longer be used at now.
func (s *CheckinSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

const PasscodeStateActive = "ACTIVE"

// PasscodeRecord is one PIN on one lock. (LockID, ProviderPasscodeID) is
// unique when ProviderPasscodeID is set.
type PasscodeRecord struct {
	ID                 int64     `json:"id" db:"id"`
	GuestRecordID      int64     `json:"guestRecordId" db:"guest_record_id"`
	LockID             int64     `json:"lockId" db:"lock_id"`
	LockAlias          string    `json:"lockAlias" db:"lock_alias"`
	PIN                string    `json:"codigo" db:"pin"`
	ProviderPasscodeID *int64    `json:"passcodeId" db:"provider_passcode_id"`
	StartAt            time.Time `json:"startAt" db:"start_at"`
	EndAt              time.Time `json:"endAt" db:"end_at"`
	State              string    `json:"state" db:"state"`
	ProviderOK         bool      `json:"ttlockOk" db:"provider_ok"`
	ProviderMessage    string    `json:"ttlockMessage" db:"provider_message"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

type RegistrationRole string

const (
	RolePrimary   RegistrationRole = "PRIMARY"
	RoleSecondary RegistrationRole = "SECONDARY"
)

// Endpoint is the registration API endpoint a role is submitted to.
func (r RegistrationRole) Endpoint() string {
	if r == RolePrimary {
		return EndpointPrimary
	}
	return EndpointSecondary
}

const (
	EndpointPrimary   = "primary"
	EndpointSecondary = "secondary"
)

type RegistrationStatus string

const (
	StatusPending RegistrationStatus = "PENDING"
	StatusSent    RegistrationStatus = "SENT"
	StatusError   RegistrationStatus = "ERROR"
)

// RegistrationRecord is one guest's submission unit to the registration API.
// Transitions: PENDING->SENT (terminal), PENDING->ERROR, ERROR->PENDING on retry.
type RegistrationRecord struct {
	ID                int64              `json:"id" db:"id"`
	ReservationNumber string             `json:"reservationNumber" db:"reservation_number"`
	Role              RegistrationRole   `json:"role" db:"role"`
	Endpoint          string             `json:"endpoint" db:"endpoint"`
	Position          int                `json:"position" db:"position"`
	ParentCode        *string            `json:"parentCode" db:"parent_code"`
	AssignedCode      *string            `json:"assignedCode" db:"assigned_code"`
	Status            RegistrationStatus `json:"status" db:"status"`
	Attempts          int                `json:"attempts" db:"attempts"`
	LastAttemptAt     *time.Time         `json:"lastAttemptAt" db:"last_attempt_at"`
	GuestData         json.RawMessage    `json:"guestData" db:"guest_data"`
	ContextData       json.RawMessage    `json:"contextData" db:"context_data"`
	RequestPayload    json.RawMessage    `json:"requestPayload,omitempty" db:"request_payload"`
	ResponsePayload   json.RawMessage    `json:"responsePayload,omitempty" db:"response_payload"`
	ErrorMessage      *string            `json:"errorMessage" db:"error_message"`
	CreatedAt         time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" db:"updated_at"`
}
