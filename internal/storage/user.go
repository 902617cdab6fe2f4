package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"ledgerline-backend/internal/models"
)

// GetUserByEmail looks the user up by exact, case-sensitive email match.
// Returns (nil, nil) when no row exists so the caller can collapse
// unknown-email and wrong-password into one indistinguishable failure.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, organization_id, name, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`

	var user models.User
	if err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.OrgID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (s *Storage) GetUser(ctx context.Context, orgID, id string) (*models.User, error) {
	query := `
		SELECT id, organization_id, name, email, password_hash, role, created_at
		FROM users
		WHERE organization_id = $1 AND id = $2
	`

	var user models.User
	err := s.db.GetContext(ctx, &user, query, orgID, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *Storage) ListUsers(ctx context.Context, orgID string) ([]models.User, error) {
	query := `
		SELECT id, organization_id, name, email, password_hash, role, created_at
		FROM users
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`

	users := make([]models.User, 0)
	if err := s.db.SelectContext(ctx, &users, query, orgID); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser adds a member to an existing organization. The row carries an
// empty password hash until the member sets a password through some
// out-of-band flow, so it cannot be used to log in.
func (s *Storage) CreateUser(ctx context.Context, orgID, name, email string) (*models.User, error) {
	query := `
		INSERT INTO users (id, organization_id, name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, '', 'member')
		RETURNING id, organization_id, name, email, password_hash, role, created_at
	`

	var user models.User
	err := s.db.QueryRowContext(ctx, query, uuid.New().String(), orgID, name, email).Scan(
		&user.ID,
		&user.OrgID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return &user, nil
}

func (s *Storage) UpdateUser(ctx context.Context, orgID, id, name, email string) (*models.User, error) {
	query := `
		UPDATE users
		SET name = $3, email = $4
		WHERE organization_id = $1 AND id = $2
		RETURNING id, organization_id, name, email, password_hash, role, created_at
	`

	var user models.User
	err := s.db.QueryRowContext(ctx, query, orgID, id, name, email).Scan(
		&user.ID,
		&user.OrgID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return &user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM users
		WHERE organization_id = $1 AND id = $2
	`, orgID, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
