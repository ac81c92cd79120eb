package roster

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/audss/oncall/errors"
)

// Store handles persistence of roster entries.
type Store struct {
	db *sql.DB
}

// NewStore creates a new roster store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new person. Name and mobile must be non-empty.
func (s *Store) Create(ctx context.Context, name, mobile string) (*Person, error) {
	name = strings.TrimSpace(name)
	mobile = strings.TrimSpace(mobile)
	if name == "" {
		return nil, errors.Validationf("name is required")
	}
	if mobile == "" {
		return nil, errors.Validationf("mobile is required")
	}

	now := time.Now().UTC()
	person := &Person{
		ID:        uuid.NewString(),
		Name:      name,
		Mobile:    mobile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO oncall_users (id, name, mobile, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		person.ID,
		person.Name,
		person.Mobile,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create person")
	}

	return person, nil
}

// Get retrieves a person by ID.
func (s *Store) Get(ctx context.Context, id string) (*Person, error) {
	query := `
		SELECT id, name, mobile, created_at, updated_at
		FROM oncall_users
		WHERE id = ?
	`

	person, err := scanPerson(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("person %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get person %s", id)
	}
	return person, nil
}

// List returns all people in creation order.
func (s *Store) List(ctx context.Context) ([]*Person, error) {
	query := `
		SELECT id, name, mobile, created_at, updated_at
		FROM oncall_users
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list people")
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan person")
		}
		people = append(people, person)
	}

	return people, rows.Err()
}

// Update mutates name and/or mobile in place. Empty arguments leave the
// corresponding field untouched; at least one field must be supplied.
func (s *Store) Update(ctx context.Context, id string, name, mobile *string) (*Person, error) {
	person, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		person.Name = strings.TrimSpace(*name)
	}
	if mobile != nil {
		person.Mobile = strings.TrimSpace(*mobile)
	}
	if person.Name == "" && person.Mobile == "" {
		return nil, errors.Validationf("name and mobile cannot both be empty")
	}

	now := time.Now().UTC()
	person.UpdatedAt = now

	query := `
		UPDATE oncall_users
		SET name = ?, mobile = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		person.Name,
		person.Mobile,
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update person %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return nil, errors.NotFoundf("person %s", id)
	}

	return person, nil
}

// DeleteTx removes a person inside the given transaction. The caller owns
// the transaction so the cascade to pending jobs commits atomically with
// the delete.
func (s *Store) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM oncall_users WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete person %s", id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NotFoundf("person %s", id)
	}

	return nil
}

// DB exposes the underlying handle for transaction composition.
func (s *Store) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPerson(row rowScanner) (*Person, error) {
	var person Person
	var createdAt, updatedAt string

	if err := row.Scan(&person.ID, &person.Name, &person.Mobile, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	person.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for person %s", person.ID)
	}
	person.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for person %s", person.ID)
	}

	return &person, nil
}
