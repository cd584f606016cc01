// Package repofakes provides an in-memory member directory for unit tests.
package repofakes

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/studylog/studylog-api/internal/model"
	"github.com/studylog/studylog-api/internal/repository"
)

// FakeMemberRepo implements the member lookup/creation surface the auth
// strategies need, plus the mutation methods the handlers use.
type FakeMemberRepo struct {
	mu      sync.Mutex
	nextID  uint64
	byEmail map[string]*model.Member
	byID    map[uint64]*model.Member
}

func NewFakeMemberRepo() *FakeMemberRepo {
	return &FakeMemberRepo{
		nextID:  1,
		byEmail: make(map[string]*model.Member),
		byID:    make(map[uint64]*model.Member),
	}
}

// Count returns the number of live members.
func (f *FakeMemberRepo) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

func (f *FakeMemberRepo) FindByEmail(_ context.Context, email string) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok || m.DeletedAt.Valid {
		return nil, repository.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *FakeMemberRepo) FindByID(_ context.Context, id uint64) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.DeletedAt.Valid {
		return nil, repository.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *FakeMemberRepo) Create(_ context.Context, email, passwordHash, role string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := f.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	m := &model.Member{
		ID:        f.nextID,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if passwordHash != "" {
		m.PasswordHash = sql.NullString{String: passwordHash, Valid: true}
	}
	f.nextID++
	f.byEmail[email] = m
	f.byID[m.ID] = m
	return m.ID, nil
}

func (f *FakeMemberRepo) UpdatePassword(_ context.Context, id uint64, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[id]; ok {
		m.PasswordHash = sql.NullString{String: passwordHash, Valid: true}
	}
	return nil
}

func (f *FakeMemberRepo) UpdateProfile(_ context.Context, id uint64, nickname, imageURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil
	}
	if nickname != nil {
		m.Nickname = sql.NullString{String: *nickname, Valid: true}
	}
	if imageURL != nil {
		m.ImageURL = sql.NullString{String: *imageURL, Valid: true}
	}
	return nil
}

func (f *FakeMemberRepo) SoftDelete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byID[id]; ok {
		m.DeletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		delete(f.byEmail, m.Email)
	}
	return nil
}
