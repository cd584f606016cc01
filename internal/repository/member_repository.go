package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/studylog/studylog-api/internal/model"
)

// MemberRepo persists members. Rows are soft-deleted: deleted_at is set and
// every lookup filters on it, so a deleted email can re-register while the
// old row stays for bookkeeping.
type MemberRepo struct{ DB *sql.DB }

func NewMemberRepo(db *sql.DB) *MemberRepo { return &MemberRepo{DB: db} }

const memberColumns = "id, email, password_hash, nickname, image_url, role, created_at, deleted_at"

func scanMember(row *sql.Row) (*model.Member, error) {
	var m model.Member
	err := row.Scan(&m.ID, &m.Email, &m.PasswordHash, &m.Nickname, &m.ImageURL, &m.Role, &m.CreatedAt, &m.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByEmail fetches a live member by normalized email.
func (r *MemberRepo) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE email=? AND deleted_at IS NULL LIMIT 1",
		email)
	return scanMember(row)
}

// FindByID fetches a live member by id.
func (r *MemberRepo) FindByID(ctx context.Context, id uint64) (*model.Member, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE id=? AND deleted_at IS NULL LIMIT 1",
		id)
	return scanMember(row)
}

// Create inserts a member and returns its id. passwordHash may be empty for
// OAuth-provisioned accounts, stored as NULL.
func (r *MemberRepo) Create(ctx context.Context, email, passwordHash, role string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var hash sql.NullString
	if passwordHash != "" {
		hash = sql.NullString{String: passwordHash, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO members (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		// MySQL 1062: duplicate entry on the unique email index.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdatePassword replaces the stored hash.
func (r *MemberRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE members SET password_hash=? WHERE id=? AND deleted_at IS NULL",
		passwordHash, id)
	return err
}

// UpdateProfile sets nickname and/or image URL; a nil pointer leaves the
// column untouched.
func (r *MemberRepo) UpdateProfile(ctx context.Context, id uint64, nickname, imageURL *string) error {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if nickname != nil {
		sets = append(sets, "nickname=?")
		args = append(args, *nickname)
	}
	if imageURL != nil {
		sets = append(sets, "image_url=?")
		args = append(args, *imageURL)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE members SET "+strings.Join(sets, ", ")+" WHERE id=? AND deleted_at IS NULL",
		args...)
	return err
}

// SoftDelete marks the member deleted. The row remains; lookups stop
// returning it.
func (r *MemberRepo) SoftDelete(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE members SET deleted_at=NOW() WHERE id=? AND deleted_at IS NULL",
		id)
	return err
}
