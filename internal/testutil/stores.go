// Package testutil holds in-memory stores and key helpers shared by the
// service, middleware and router tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go-clinic-api/internal/model"
)

// AccountStore is an in-memory stand-in for one of the account tables.
type AccountStore struct {
	mu       sync.RWMutex
	kind     model.AccountKind
	accounts map[string]model.Account

	// Err, when set, is returned by every lookup.
	Err error
}

func NewAccountStore(kind model.AccountKind) *AccountStore {
	return &AccountStore{kind: kind, accounts: map[string]model.Account{}}
}

func (s *AccountStore) Put(account model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.Kind = s.kind
	account.Email = model.NormalizeEmail(account.Email)
	s.accounts[account.ID] = account
}

func (s *AccountStore) FindByID(_ context.Context, id string) (model.Account, error) {
	if s.Err != nil {
		return model.Account{}, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountStore) FindByEmail(_ context.Context, email string) (model.Account, error) {
	if s.Err != nil {
		return model.Account{}, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = model.NormalizeEmail(email)
	for _, account := range s.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (s *AccountStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *AccountStore) Create(ctx context.Context, account model.Account) error {
	if exists, err := s.ExistsByEmail(ctx, account.Email); err != nil || exists {
		if err != nil {
			return err
		}
		return model.ErrAccountAlreadyExists
	}
	s.Put(account)
	return nil
}

func (s *AccountStore) Update(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[account.ID]
	if !ok {
		return model.ErrAccountNotFound
	}
	current.Name = account.Name
	current.Email = model.NormalizeEmail(account.Email)
	current.Role = account.Role
	current.UpdatedAt = account.UpdatedAt
	s.accounts[account.ID] = current
	return nil
}

func (s *AccountStore) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	current.PasswordHash = passwordHash
	current.UpdatedAt = time.Now().UTC()
	s.accounts[id] = current
	return nil
}

// LinkPatient mirrors the unique index on pre_registered_users.patient_id.
func (s *AccountStore) LinkPatient(_ context.Context, id string, patientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	for otherID, other := range s.accounts {
		if otherID != id && other.LinkedPatientID() == patientID {
			return model.ErrPatientAlreadyLinked
		}
	}
	linked := patientID
	current.PatientID = &linked
	current.UpdatedAt = time.Now().UTC()
	s.accounts[id] = current
	return nil
}

func (s *AccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return model.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *AccountStore) List(_ context.Context, limit int, offset int) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]model.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		all = append(all, account)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	return window(all, limit, offset), nil
}

func (s *AccountStore) Count(_ context.Context) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

type PatientStore struct {
	mu       sync.RWMutex
	patients map[string]model.Patient
}

func NewPatientStore() *PatientStore {
	return &PatientStore{patients: map[string]model.Patient{}}
}

func (s *PatientStore) FindByID(_ context.Context, id string) (model.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patient, ok := s.patients[id]
	if !ok {
		return model.Patient{}, model.ErrPatientNotFound
	}
	return patient, nil
}

func (s *PatientStore) Create(_ context.Context, patient model.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[patient.ID] = patient
	return nil
}

func (s *PatientStore) List(_ context.Context, limit int, offset int) ([]model.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]model.Patient, 0, len(s.patients))
	for _, patient := range s.patients {
		all = append(all, patient)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return window(all, limit, offset), nil
}

func (s *PatientStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patients), nil
}

func window[T any](items []T, limit int, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

type AuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry

	// Err, when set, is returned by Log.
	Err error
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *AuditStore) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]model.AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if query.Action != "" && entry.Action != query.Action {
			continue
		}
		if query.ActorID != "" && entry.Actor.AccountID != query.ActorID {
			continue
		}
		if query.Status != "" && entry.Status != query.Status {
			continue
		}
		matched = append(matched, entry)
	}
	return window(matched, query.Limit, (query.Page-1)*query.Limit), len(matched), nil
}

func (s *AuditStore) Entries() []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditEntry(nil), s.entries...)
}
