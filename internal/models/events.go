package models

import "time"

// NATS Event Types
const (
	EventGuestCheckedIn        = "guest.checked_in"
	EventGuestDeleted          = "guest.deleted"
	EventRegistrationProcessed = "registration.processed"
	EventPinsProvisioned       = "pins.provisioned"
)

// GuestCheckedInEvent carries the whole record so consumers can index it
// without reading the database.
type GuestCheckedInEvent struct {
	Guest     GuestRecord `json:"guest"`
	Timestamp time.Time   `json:"timestamp"`
}

type GuestDeletedEvent struct {
	GuestID           int64     `json:"guest_id"`
	ReservationNumber string    `json:"reservation_number"`
	Timestamp         time.Time `json:"timestamp"`
}

type RegistrationProcessedEvent struct {
	ReservationNumber string    `json:"reservation_number"`
	OK                bool      `json:"ok"`
	Sent              int       `json:"sent"`
	Failed            int       `json:"failed"`
	Timestamp         time.Time `json:"timestamp"`
}

type PinsProvisionedEvent struct {
	GuestID   int64     `json:"guest_id"`
	RoomID    string    `json:"room_id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Timestamp time.Time `json:"timestamp"`
}
