package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createGuestRecordsTable,
		createCheckinSessionsTable,
		createPasscodesTable,
		createRegistrationRecordsTable,
		createGuestRecordsIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createGuestRecordsTable = `
CREATE TABLE IF NOT EXISTS guest_records (
    id BIGSERIAL PRIMARY KEY,
    reservation_number VARCHAR(64) UNIQUE NOT NULL,
    full_name VARCHAR(255) NOT NULL,
    document_type VARCHAR(20) NOT NULL DEFAULT '',
    document_number VARCHAR(64) NOT NULL,
    nationality VARCHAR(100) NOT NULL DEFAULT '',
    phone VARCHAR(50) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL DEFAULT '',
    origin_address TEXT NOT NULL DEFAULT '',
    destination_address TEXT NOT NULL DEFAULT '',
    travel_reason VARCHAR(100) NOT NULL DEFAULT '',
    arrival_date DATE,
    departure_date DATE,
    share_url TEXT,
    lock_pin VARCHAR(9),
    documents TEXT[] NOT NULL DEFAULT '{}',
    companions JSONB,
    created_at TIMESTAMP NOT NULL DEFAULT NOW()
);`

const createCheckinSessionsTable = `
CREATE TABLE IF NOT EXISTS checkin_sessions (
    id BIGSERIAL PRIMARY KEY,
    reservation_number VARCHAR(64) UNIQUE NOT NULL,
    token VARCHAR(64) UNIQUE NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}',
    expires_at TIMESTAMP NOT NULL,
    first_used_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_checkin_sessions_expires_at ON checkin_sessions(expires_at);`

const createPasscodesTable = `
CREATE TABLE IF NOT EXISTS passcodes (
    id BIGSERIAL PRIMARY KEY,
    guest_record_id BIGINT NOT NULL REFERENCES guest_records(id) ON DELETE CASCADE,
    lock_id BIGINT NOT NULL,
    lock_alias VARCHAR(255) NOT NULL,
    pin VARCHAR(9) NOT NULL,
    provider_passcode_id BIGINT,
    start_at TIMESTAMP NOT NULL,
    end_at TIMESTAMP NOT NULL,
    state VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    provider_ok BOOLEAN NOT NULL DEFAULT FALSE,
    provider_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    UNIQUE(lock_id, provider_passcode_id)
);
CREATE INDEX IF NOT EXISTS idx_passcodes_guest ON passcodes(guest_record_id);`

const createRegistrationRecordsTable = `
CREATE TABLE IF NOT EXISTS registration_records (
    id BIGSERIAL PRIMARY KEY,
    reservation_number VARCHAR(64) NOT NULL,
    role VARCHAR(20) NOT NULL,
    endpoint VARCHAR(20) NOT NULL,
    position INTEGER NOT NULL,
    parent_code VARCHAR(100),
    assigned_code VARCHAR(100),
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    attempts INTEGER NOT NULL DEFAULT 0,
    last_attempt_at TIMESTAMP,
    guest_data JSONB NOT NULL,
    context_data JSONB NOT NULL DEFAULT '{}',
    request_payload JSONB,
    response_payload JSONB,
    error_message TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (role IN ('PRIMARY', 'SECONDARY')),
    CHECK (status IN ('PENDING', 'SENT', 'ERROR'))
);
CREATE INDEX IF NOT EXISTS idx_registration_records_lookup
    ON registration_records(reservation_number, role, position);
CREATE UNIQUE INDEX IF NOT EXISTS idx_registration_records_one_primary
    ON registration_records(reservation_number) WHERE role = 'PRIMARY';`

const createGuestRecordsIndexes = `
CREATE INDEX IF NOT EXISTS idx_guest_records_document ON guest_records(document_number);
CREATE INDEX IF NOT EXISTS idx_guest_records_phone ON guest_records(phone);
CREATE INDEX IF NOT EXISTS idx_guest_records_email ON guest_records(LOWER(email));
CREATE INDEX IF NOT EXISTS idx_guest_records_created_at ON guest_records(created_at DESC);`
