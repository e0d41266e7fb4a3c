package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/quiet-hours/internal/apperror"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `user_id, email, full_name, password_hash, github_id, created_at, updated_at`

func scanProfile(s rowScanner) (*model.Profile, error) {
	var (
		p                    model.Profile
		githubID             sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := s.Scan(
		&p.UserID, &p.Email, &p.FullName, &p.PasswordHash,
		&githubID, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		p.GitHubID = &id
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// The driver's error text is the only stable signal across modernc versions.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateProfile inserts a new profile. The email is lowercased; a duplicate
// email yields apperror.ErrConflict.
func (db *DB) CreateProfile(ctx context.Context, profile *model.Profile) error {
	if profile.UserID == "" {
		profile.UserID = xid.New().String()
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))

	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	var githubID sql.NullInt64
	if profile.GitHubID != nil {
		githubID = sql.NullInt64{Int64: *profile.GitHubID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.UserID,
		profile.Email,
		profile.FullName,
		profile.PasswordHash,
		githubID,
		toMillis(profile.CreatedAt),
		toMillis(profile.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("profile", profile.Email)
		}
		return fmt.Errorf("sqlite: creating profile: %w", err)
	}

	return nil
}

// GetProfileByUserID retrieves a profile by its owner id.
func (db *DB) GetProfileByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}
	return p, nil
}

// GetProfileByEmail looks a profile up by email, case-insensitively.
// The returned profile includes the password hash for login.
func (db *DB) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = ?`, email)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", email)
		}
		return nil, fmt.Errorf("sqlite: getting profile by email: %w", err)
	}
	return p, nil
}

// UpsertGitHubProfile creates or refreshes the profile linked to a GitHub
// account.
//
// Lookup order: github_id first, then email. A password account with the same
// email gets linked to the GitHub id instead of duplicated. On return, the
// caller's profile carries the canonical UserID and timestamps.
func (db *DB) UpsertGitHubProfile(ctx context.Context, profile *model.Profile) error {
	if profile.GitHubID == nil {
		return apperror.ValidationFailed("githubId", "github id is required")
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE github_id = ?`, *profile.GitHubID)
	existing, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) && profile.Email != "" {
		row = db.conn.QueryRowContext(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE email = ?`, profile.Email)
		existing, err = scanProfile(row)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up github profile %d: %w", *profile.GitHubID, err)
	}

	if existing == nil {
		return db.CreateProfile(ctx, profile)
	}

	// Keep the stored values where GitHub returned nothing.
	if profile.Email == "" {
		profile.Email = existing.Email
	}
	if profile.FullName == "" {
		profile.FullName = existing.FullName
	}
	profile.UserID = existing.UserID
	profile.PasswordHash = existing.PasswordHash
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE profiles SET email = ?, full_name = ?, github_id = ?, updated_at = ?
		 WHERE user_id = ?`,
		profile.Email,
		profile.FullName,
		*profile.GitHubID,
		toMillis(profile.UpdatedAt),
		profile.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("profile", profile.Email)
		}
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.UserID, err)
	}
	return nil
}

// QueryProfilesByOwnerIDs fetches all profiles for the given owner ids in one
// query. Unknown ids are skipped; an empty input returns an empty result
// without touching the database.
func (db *DB) QueryProfilesByOwnerIDs(ctx context.Context, userIDs []string) ([]model.Profile, error) {
	if len(userIDs) == 0 {
		return []model.Profile{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying profiles by owner ids: %w", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0, len(userIDs))
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profiles: %w", err)
	}
	return profiles, nil
}
