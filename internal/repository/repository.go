package repository

import (
	"encoding/json"
	"errors"

	"hostelgate/internal/database"
	"hostelgate/internal/search"

	"github.com/lib/pq"
)

type Repositories struct {
	Guests        *GuestRepository
	Sessions      *SessionRepository
	Passcodes     *PasscodeRepository
	Registrations *RegistrationRepository
	GuestSearch   *GuestSearchRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Guests:        NewGuestRepository(db),
		Sessions:      NewSessionRepository(db),
		Passcodes:     NewPasscodeRepository(db),
		Registrations: NewRegistrationRepository(db),
		GuestSearch:   nil, // set when Elasticsearch is configured
	}
}

func NewRepositoriesWithElasticsearch(db *database.DB, es *search.ElasticsearchClient) *Repositories {
	repos := NewRepositories(db)
	repos.GuestSearch = NewGuestSearchRepository(es)
	return repos
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// nullJSON stores an empty payload as SQL NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func jsonOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return []byte(raw)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

type scanner interface {
	Scan(dest ...any) error
}
