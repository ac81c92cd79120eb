package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/audss/oncall/errors"
)

// Store handles persistence of scheduled jobs.
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new pending job for the given person. The person must
// exist; past due times are accepted and become immediately eligible,
// so "apply now" and "apply later" flow through the same path.
func (s *Store) Create(ctx context.Context, personID string, dueAt time.Time) (*Job, error) {
	if personID == "" {
		return nil, errors.Validationf("person id is required")
	}
	if dueAt.IsZero() {
		return nil, errors.Validationf("due time is required")
	}

	// One transaction around check and insert, so a concurrent person
	// delete cannot slip between them and leave a pending orphan.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin create transaction")
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM oncall_users WHERE id = ?)`, personID).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check person existence")
	}
	if !exists {
		return nil, errors.NotFoundf("person %s", personID)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		PersonID:  personID,
		DueAt:     dueAt.UTC(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO oncall_schedules (id, user_id, due_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		job.ID,
		job.PersonID,
		job.DueAt.Format(time.RFC3339),
		string(job.Status),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduled job")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit create transaction")
	}

	return job, nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	query := selectJobColumns + ` WHERE id = ?`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("scheduled job %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get scheduled job %s", id)
	}
	return job, nil
}

// List returns all jobs ordered by due time ascending.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	return s.queryJobs(ctx, selectJobColumns+` ORDER BY due_at ASC, rowid ASC`)
}

// ListPending returns pending jobs ordered by due time ascending, joined
// with the referenced person's display fields.
func (s *Store) ListPending(ctx context.Context) ([]*JobWithPerson, error) {
	query := `
		SELECT s.id, s.user_id, s.due_at, s.status, s.failure_reason,
		       s.applied_at, s.created_at, s.updated_at, u.name, u.mobile
		FROM oncall_schedules s
		JOIN oncall_users u ON s.user_id = u.id
		WHERE s.status = ?
		ORDER BY s.due_at ASC, s.rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(StatusPending))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pending jobs")
	}
	defer rows.Close()

	var jobs []*JobWithPerson
	for rows.Next() {
		var jp JobWithPerson
		var dueAt, createdAt, updatedAt, status string
		var failureReason, appliedAt sql.NullString

		err := rows.Scan(&jp.ID, &jp.PersonID, &dueAt, &status, &failureReason,
			&appliedAt, &createdAt, &updatedAt, &jp.PersonName, &jp.PersonMobile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan pending job")
		}
		if err := fillJobTimes(&jp.Job, dueAt, createdAt, updatedAt, status, failureReason, appliedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, &jp)
	}

	return jobs, rows.Err()
}

// ListDue returns pending jobs whose due time has passed, oldest first.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]*Job, error) {
	query := selectJobColumns + `
		WHERE status = ? AND due_at <= ?
		ORDER BY due_at ASC, rowid ASC
	`
	return s.queryJobs(ctx, query, string(StatusPending), now.UTC().Format(time.RFC3339))
}

// Claim transitions a job from pending to dispatching. It is the atomic
// compare-and-swap that guarantees at-most-once dispatch: if another
// dispatcher pass (or a cancellation) got there first, Claim reports
// ErrInvalidState and the caller must skip the job.
func (s *Store) Claim(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusDispatching, StatusPending, "", nil)
}

// MarkApplied finalizes a claimed job as applied. Fails with
// ErrInvalidState unless the job is currently dispatching.
func (s *Store) MarkApplied(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.transition(ctx, id, StatusApplied, StatusDispatching, "", &now)
}

// MarkFailed finalizes a claimed job as failed, recording which hosts
// failed for operator visibility.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, StatusFailed, StatusDispatching, reason, nil)
}

// Cancel transitions a pending job to cancelled. Jobs already claimed or
// terminal cannot be cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	err := s.transition(ctx, id, StatusCancelled, StatusPending, "", nil)
	if err != nil && errors.IsInvalidState(err) {
		// Distinguish "no such job" from "job left pending" for callers.
		if _, getErr := s.Get(ctx, id); errors.IsNotFound(getErr) {
			return getErr
		}
	}
	return err
}

// CancelClaimed transitions a dispatching job to cancelled. Used by the
// dispatcher when the referenced person vanished between claim and push.
func (s *Store) CancelClaimed(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusCancelled, StatusDispatching, "", nil)
}

// CancelPendingForPerson cancels all pending jobs referencing a person,
// inside the caller's transaction. Returns the number of jobs cancelled.
func (s *Store) CancelPendingForPerson(ctx context.Context, tx *sql.Tx, personID string) (int64, error) {
	query := `
		UPDATE oncall_schedules
		SET status = ?, updated_at = ?
		WHERE user_id = ? AND status = ?
	`
	result, err := tx.ExecContext(ctx, query,
		string(StatusCancelled),
		time.Now().UTC().Format(time.RFC3339),
		personID,
		string(StatusPending),
	)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to cancel pending jobs for person %s", personID)
	}
	return result.RowsAffected()
}

// Delete removes a terminal or cancelled job record. Pending and
// dispatching jobs must be cancelled first.
func (s *Store) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return errors.InvalidStatef("job %s is %s, not terminal", id, job.Status)
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM oncall_schedules WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete scheduled job %s", id)
	}
	return nil
}

// transition performs a guarded status update: the WHERE clause demands
// the expected current status, so concurrent writers cannot interleave.
func (s *Store) transition(ctx context.Context, id string, to, from Status, reason string, appliedAt *time.Time) error {
	var reasonVal interface{}
	if reason != "" {
		reasonVal = reason
	}
	var appliedVal interface{}
	if appliedAt != nil {
		appliedVal = appliedAt.Format(time.RFC3339)
	}

	query := `
		UPDATE oncall_schedules
		SET status = ?, failure_reason = ?, applied_at = COALESCE(?, applied_at), updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		string(to),
		reasonVal,
		appliedVal,
		time.Now().UTC().Format(time.RFC3339),
		id,
		string(from),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to transition job %s to %s", id, to)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.InvalidStatef("job %s is not %s", id, from)
	}

	return nil
}

const selectJobColumns = `
	SELECT id, user_id, due_at, status, failure_reason, applied_at, created_at, updated_at
	FROM oncall_schedules`

func (s *Store) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query scheduled jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan scheduled job")
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var dueAt, createdAt, updatedAt, status string
	var failureReason, appliedAt sql.NullString

	err := row.Scan(&job.ID, &job.PersonID, &dueAt, &status, &failureReason,
		&appliedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := fillJobTimes(&job, dueAt, createdAt, updatedAt, status, failureReason, appliedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func fillJobTimes(job *Job, dueAt, createdAt, updatedAt, status string, failureReason, appliedAt sql.NullString) error {
	if !IsValidStatus(status) {
		return errors.Newf("job %s carries unknown status %q", job.ID, status)
	}
	job.Status = Status(status)
	if failureReason.Valid {
		job.FailureReason = failureReason.String
	}

	var err error
	job.DueAt, err = time.Parse(time.RFC3339, dueAt)
	if err != nil {
		return errors.Wrapf(err, "failed to parse due_at for job %s", job.ID)
	}
	job.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return errors.Wrapf(err, "failed to parse created_at for job %s", job.ID)
	}
	job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to parse updated_at for job %s", job.ID)
	}
	if appliedAt.Valid {
		t, err := time.Parse(time.RFC3339, appliedAt.String)
		if err != nil {
			return errors.Wrapf(err, "failed to parse applied_at for job %s", job.ID)
		}
		job.AppliedAt = &t
	}

	return nil
}
