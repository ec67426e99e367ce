package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "hostelgate/internal/errors"
	"hostelgate/internal/external"
	"hostelgate/internal/models"
	"hostelgate/internal/worker"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func completeTRASettings() external.TRAConfig {
	return external.TRAConfig{
		BaseURL:           "https://tra.example",
		Token:             "secret",
		EstablishmentName: "Casa Azul",
		EstablishmentRNT:  "12345",
		RoomNumber:        "1",
		AccommodationType: "Hostel",
		Cost:              "50000",
	}
}

// registrations

type fakeRegistrationStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*models.RegistrationRecord
}

func newFakeRegistrationStore() *fakeRegistrationStore {
	return &fakeRegistrationStore{records: make(map[int64]*models.RegistrationRecord)}
}

func (f *fakeRegistrationStore) CreateBatch(_ context.Context, records []models.RegistrationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Mirrors the one-PRIMARY-per-reservation unique index.
	for _, rec := range records {
		if rec.Role != models.RolePrimary {
			continue
		}
		for _, existing := range f.records {
			if existing.ReservationNumber == rec.ReservationNumber && existing.Role == models.RolePrimary {
				return apperrors.Conflictf("registration records already exist for reservation %s", rec.ReservationNumber)
			}
		}
	}
	for i := range records {
		f.nextID++
		records[i].ID = f.nextID
		records[i].CreatedAt = testNow
		records[i].UpdatedAt = testNow
		rec := records[i]
		f.records[rec.ID] = &rec
	}
	return nil
}

func (f *fakeRegistrationStore) ListByReservation(_ context.Context, reservation string) ([]models.RegistrationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RegistrationRecord
	for _, r := range f.records {
		if r.ReservationNumber == reservation {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role == models.RolePrimary
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeRegistrationStore) MarkAttempt(_ context.Context, id int64, parentCode *string, payload json.RawMessage, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.records[id]
	r.Attempts++
	r.LastAttemptAt = &at
	r.RequestPayload = payload
	r.ParentCode = parentCode
	r.UpdatedAt = at
	return nil
}

func (f *fakeRegistrationStore) MarkSent(_ context.Context, id int64, assignedCode *string, response json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.records[id]
	r.Status = models.StatusSent
	r.AssignedCode = assignedCode
	r.ResponsePayload = response
	r.ErrorMessage = nil
	return nil
}

func (f *fakeRegistrationStore) MarkError(_ context.Context, id int64, message string, response json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.records[id]
	r.Status = models.StatusError
	r.ErrorMessage = &message
	r.ResponsePayload = response
	return nil
}

func (f *fakeRegistrationStore) MarkUnsentError(_ context.Context, reservation, message string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if r.ReservationNumber == reservation && r.Status != models.StatusSent {
			msg := message
			r.Status = models.StatusError
			r.ErrorMessage = &msg
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistrationStore) ResetUnsent(_ context.Context, reservation string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if r.ReservationNumber == reservation && r.Status != models.StatusSent {
			r.Status = models.StatusPending
			r.ErrorMessage = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistrationStore) get(id int64) models.RegistrationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.records[id]
}

type traCall struct {
	Endpoint string
	Payload  map[string]any
}

// fakeTRA answers every call with respond. When gate is set, Submit
// signals entered and then blocks until gate is closed.
type fakeTRA struct {
	mu      sync.Mutex
	calls   []traCall
	respond func(endpoint string, payload map[string]any) (*external.TRAResponse, error)
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeTRA) Submit(_ context.Context, endpoint string, payload map[string]any) (*external.TRAResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, traCall{Endpoint: endpoint, Payload: payload})
	f.mu.Unlock()
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.respond == nil {
		return &external.TRAResponse{StatusCode: 200, Body: json.RawMessage(`{"code":"X"}`)}, nil
	}
	return f.respond(endpoint, payload)
}

func (f *fakeTRA) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func okResponse(body string) (*external.TRAResponse, error) {
	return &external.TRAResponse{StatusCode: 201, Body: json.RawMessage(body)}, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []worker.Task
	err   error
}

func (f *fakeQueue) Submit(task worker.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []any
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return nil
}

// guests

type fakeGuestStore struct {
	mu     sync.Mutex
	nextID int64
	guests map[int64]*models.GuestRecord
	pins   map[int64]string
}

func newFakeGuestStore() *fakeGuestStore {
	return &fakeGuestStore{guests: make(map[int64]*models.GuestRecord), pins: make(map[int64]string)}
}

func (f *fakeGuestStore) add(g models.GuestRecord) *models.GuestRecord {
	_ = f.Create(context.Background(), &g)
	return &g
}

func (f *fakeGuestStore) Create(_ context.Context, g *models.GuestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.guests {
		if existing.ReservationNumber == g.ReservationNumber {
			return apperrors.Conflictf("reservation %s already has a check-in", g.ReservationNumber)
		}
	}
	f.nextID++
	g.ID = f.nextID
	g.CreatedAt = testNow
	stored := *g
	f.guests[g.ID] = &stored
	return nil
}

func (f *fakeGuestStore) GetByID(_ context.Context, id int64) (*models.GuestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guests[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGuestStore) GetByReservation(_ context.Context, reservation string) (*models.GuestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.guests {
		if g.ReservationNumber == reservation {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeGuestStore) FindByDocument(_ context.Context, number string) ([]models.GuestRecord, error) {
	return f.filter(func(g *models.GuestRecord) bool { return g.DocumentNumber == number }), nil
}

func (f *fakeGuestStore) FindByContact(_ context.Context, phoneDigits, email string) ([]models.GuestRecord, error) {
	return f.filter(func(g *models.GuestRecord) bool {
		return (phoneDigits != "" && digitsOnly(g.Phone) == phoneDigits) ||
			(email != "" && strings.EqualFold(g.Email, email))
	}), nil
}

func (f *fakeGuestStore) List(_ context.Context, filter models.GuestFilter) ([]models.GuestRecord, error) {
	q := strings.ToLower(filter.Query)
	out := f.filter(func(g *models.GuestRecord) bool {
		return q == "" || strings.Contains(strings.ToLower(g.FullName), q)
	})
	if filter.Offset >= len(out) {
		return []models.GuestRecord{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeGuestStore) ListByIDs(_ context.Context, ids []int64) ([]models.GuestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.GuestRecord{}
	for _, id := range ids {
		if g, ok := f.guests[id]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGuestStore) UpdateShareURL(_ context.Context, id int64, shareURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.guests[id]
	if !ok {
		return false, nil
	}
	g.ShareURL = &shareURL
	return true, nil
}

func (f *fakeGuestStore) UpdateLockPIN(_ context.Context, id int64, pin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins[id] = pin
	if g, ok := f.guests[id]; ok {
		g.LockPIN = &pin
	}
	return nil
}

func (f *fakeGuestStore) Delete(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.guests[id]; !ok {
		return false, nil
	}
	delete(f.guests, id)
	return true, nil
}

func (f *fakeGuestStore) filter(keep func(*models.GuestRecord) bool) []models.GuestRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GuestRecord
	for _, g := range f.guests {
		if keep(g) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type fakeIndex struct {
	ids []int64
	err error
}

func (f *fakeIndex) SearchIDs(context.Context, models.GuestFilter) ([]int64, error) {
	return f.ids, f.err
}

// passcodes

type fakePasscodeStore struct {
	mu      sync.Mutex
	nextID  int64
	records []models.PasscodeRecord
	failOn  int64
}

func (f *fakePasscodeStore) Upsert(_ context.Context, p *models.PasscodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != 0 && p.LockID == f.failOn {
		return context.DeadlineExceeded
	}
	if p.ProviderPasscodeID != nil {
		for i := range f.records {
			r := &f.records[i]
			if r.LockID == p.LockID && r.ProviderPasscodeID != nil && *r.ProviderPasscodeID == *p.ProviderPasscodeID {
				p.ID = r.ID
				*r = *p
				return nil
			}
		}
	}
	f.nextID++
	p.ID = f.nextID
	f.records = append(f.records, *p)
	return nil
}

func (f *fakePasscodeStore) ListByGuest(_ context.Context, guestID int64) ([]models.PasscodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PasscodeRecord
	for _, r := range f.records {
		if r.GuestRecordID == guestID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePasscodeStore) DeleteByGuest(_ context.Context, guestID int64) (int64, error) {
	return f.remove(func(r models.PasscodeRecord) bool { return r.GuestRecordID == guestID }), nil
}

func (f *fakePasscodeStore) DeleteByProviderID(_ context.Context, lockID, passcodeID int64) (int64, error) {
	return f.remove(func(r models.PasscodeRecord) bool {
		return r.LockID == lockID && r.ProviderPasscodeID != nil && *r.ProviderPasscodeID == passcodeID
	}), nil
}

func (f *fakePasscodeStore) remove(match func(models.PasscodeRecord) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	var n int64
	for _, r := range f.records {
		if match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return n
}

// locks

type fakeLocks struct {
	mu        sync.Mutex
	keys      []external.LockKey
	keysErr   error
	locks     []external.Lock
	passcodes map[int64][]external.Passcode
	add       func(req external.AddPasscodeRequest) (external.Response, error)
	del       func(lockID, passcodeID int64) (external.Response, error)
	added     []external.AddPasscodeRequest
	deleted   [][2]int64
}

func (f *fakeLocks) ListKeys(context.Context) ([]external.LockKey, error) {
	return f.keys, f.keysErr
}

func (f *fakeLocks) ListLocks(context.Context) ([]external.Lock, error) {
	return f.locks, nil
}

func (f *fakeLocks) ListPasscodes(_ context.Context, lockID int64) ([]external.Passcode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passcodes[lockID], nil
}

func (f *fakeLocks) AddPasscode(_ context.Context, req external.AddPasscodeRequest) (external.Response, error) {
	f.mu.Lock()
	f.added = append(f.added, req)
	n := len(f.added)
	f.mu.Unlock()
	if f.add != nil {
		return f.add(req)
	}
	return external.Response{"keyboardPwdId": float64(1000 + n)}, nil
}

func (f *fakeLocks) DeletePasscode(_ context.Context, lockID, passcodeID int64) (external.Response, error) {
	f.mu.Lock()
	f.deleted = append(f.deleted, [2]int64{lockID, passcodeID})
	f.mu.Unlock()
	if f.del != nil {
		return f.del(lockID, passcodeID)
	}
	return external.Response{"errcode": float64(0)}, nil
}

// sessions

type fakeSessionStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[string]*models.CheckinSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*models.CheckinSession)}
}

func (f *fakeSessionStore) Upsert(_ context.Context, s *models.CheckinSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, existing := range f.sessions {
		if existing.ReservationNumber == s.ReservationNumber {
			s.ID = existing.ID
			delete(f.sessions, token)
		}
	}
	if s.ID == 0 {
		f.nextID++
		s.ID = f.nextID
	}
	s.FirstUsedAt = nil
	stored := *s
	f.sessions[s.Token] = &stored
	return nil
}

func (f *fakeSessionStore) GetByToken(_ context.Context, token string) (*models.CheckinSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) UpdatePayload(_ context.Context, token string, payload json.RawMessage, expiresAt, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.ExpiresAt.Before(now) {
		return false, nil
	}
	s.Payload = payload
	s.ExpiresAt = expiresAt
	return true, nil
}

func (f *fakeSessionStore) MarkFirstUsed(_ context.Context, token string, at time.Time) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[token]
	if s.FirstUsedAt == nil {
		s.FirstUsedAt = &at
	}
	used := *s.FirstUsedAt
	return &used, nil
}

func (f *fakeSessionStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, s := range f.sessions {
		if s.ExpiresAt.Before(before) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

// booking

type fakeBooking struct {
	configured bool
	byID       map[string]external.BookingReservation
	list       []external.BookingReservation
	err        error
	getCalls   int
	listCalls  int
}

func (f *fakeBooking) Configured() bool { return f.configured }

func (f *fakeBooking) GetReservation(_ context.Context, orderID string) (*external.BookingReservation, error) {
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byID[orderID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeBooking) ListReservations(context.Context) ([]external.BookingReservation, error) {
	f.listCalls++
	return f.list, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = raw
	return nil
}
