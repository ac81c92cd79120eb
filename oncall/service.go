package oncall

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/audss/oncall/errors"
	"github.com/audss/oncall/notify"
	"github.com/audss/oncall/roster"
	"github.com/audss/oncall/sbc"
	"github.com/audss/oncall/schedule"
)

// GatewayUpdater is the slice of the SBC updater the service needs.
type GatewayUpdater interface {
	ApplyNumber(ctx context.Context, number string) []sbc.Outcome
	CurrentStatus(ctx context.Context) []sbc.Outcome
}

// Service composes the roster, the schedule store, and the gateway
// updater behind one API used by both the HTTP server and the CLI.
type Service struct {
	people   *roster.Store
	jobs     *schedule.Store
	updater  GatewayUpdater
	notifier notify.Notifier
	log      *zap.SugaredLogger
}

// NewService creates the service. notifier may be nil.
func NewService(people *roster.Store, jobs *schedule.Store, updater GatewayUpdater, notifier notify.Notifier, log *zap.SugaredLogger) *Service {
	return &Service{
		people:   people,
		jobs:     jobs,
		updater:  updater,
		notifier: notifier,
		log:      log,
	}
}

// AddPerson registers a person on the roster.
func (s *Service) AddPerson(ctx context.Context, name, mobile string) (*roster.Person, error) {
	person, err := s.people.Create(ctx, name, mobile)
	if err != nil {
		return nil, err
	}
	s.log.Infow("Person added", "person_id", person.ID, "name", person.Name)
	return person, nil
}

// ListPeople returns the roster in creation order.
func (s *Service) ListPeople(ctx context.Context) ([]*roster.Person, error) {
	return s.people.List(ctx)
}

// GetPerson returns one roster entry.
func (s *Service) GetPerson(ctx context.Context, id string) (*roster.Person, error) {
	return s.people.Get(ctx, id)
}

// UpdatePerson mutates a roster entry. Nil fields are left unchanged.
func (s *Service) UpdatePerson(ctx context.Context, id string, name, mobile *string) (*roster.Person, error) {
	person, err := s.people.Update(ctx, id, name, mobile)
	if err != nil {
		return nil, err
	}
	s.log.Infow("Person updated", "person_id", person.ID, "name", person.Name)
	return person, nil
}

// DeletePerson removes a person and cancels their pending jobs in one
// transaction, so no job can ever fire against a deleted person.
func (s *Service) DeletePerson(ctx context.Context, id string) error {
	tx, err := s.people.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin delete transaction")
	}
	defer tx.Rollback()

	cancelled, err := s.jobs.CancelPendingForPerson(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.people.DeleteTx(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit delete transaction")
	}

	s.log.Infow("Person deleted", "person_id", id, "cancelled_jobs", cancelled)
	return nil
}

// CreateSchedule records a future on-call change for a person. dueAtRaw
// is an RFC 3339 timestamp; a due time in the past is accepted and picks
// up on the next dispatcher tick. A notification email is attempted but
// never blocks schedule creation.
func (s *Service) CreateSchedule(ctx context.Context, personID, dueAtRaw string) (*schedule.Job, error) {
	dueAt, err := time.Parse(time.RFC3339, dueAtRaw)
	if err != nil {
		return nil, errors.Validationf("invalid datetime format: %q", dueAtRaw)
	}

	person, err := s.people.Get(ctx, personID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.Create(ctx, personID, dueAt)
	if err != nil {
		return nil, err
	}

	s.log.Infow("Schedule created",
		"job_id", job.ID,
		"person", person.Name,
		"due_at", job.DueAt)

	if s.notifier != nil {
		if err := s.notifier.ScheduleCreated(person.Name, person.Mobile, job.DueAt); err != nil {
			s.log.Errorw("Failed to send schedule notification",
				"job_id", job.ID,
				"error", err)
		}
	}

	return job, nil
}

// ListSchedules returns pending jobs joined with person display fields.
func (s *Service) ListSchedules(ctx context.Context) ([]*schedule.JobWithPerson, error) {
	return s.jobs.ListPending(ctx)
}

// ListScheduleHistory returns every job regardless of status.
func (s *Service) ListScheduleHistory(ctx context.Context) ([]*schedule.Job, error) {
	return s.jobs.List(ctx)
}

// CancelSchedule cancels a pending job.
func (s *Service) CancelSchedule(ctx context.Context, id string) error {
	if err := s.jobs.Cancel(ctx, id); err != nil {
		return err
	}
	s.log.Infow("Schedule cancelled", "job_id", id)
	return nil
}

// UpdateNow pushes a number to every gateway host immediately, bypassing
// the schedule. Per-host outcomes are returned unchanged so callers can
// report partial failure.
func (s *Service) UpdateNow(ctx context.Context, mobile string) ([]sbc.Outcome, error) {
	mobile = strings.ReplaceAll(strings.TrimSpace(mobile), " ", "")
	if mobile == "" {
		return nil, errors.Validationf("mobile number is required")
	}

	s.log.Infow("Immediate on-call update requested", "mobile", mobile)
	return s.updater.ApplyNumber(ctx, mobile), nil
}

// Status queries every gateway host for its configured on-call number.
func (s *Service) Status(ctx context.Context) []sbc.Outcome {
	return s.updater.CurrentStatus(ctx)
}
