package checkin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/platform/metrics"
	"frisk/internal/student"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/sentinel"
	"frisk/pkg/platform/tx"
	"frisk/pkg/requestcontext"
)

// Service runs the quarterly check-in workflow.
type Service struct {
	store    Store
	students student.Store
	runner   *tx.Runner
	recorder *audit.Recorder
	logger   *slog.Logger
	m        *metrics.Metrics
}

func NewService(store Store, students student.Store, runner *tx.Runner,
	recorder *audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		students: students,
		runner:   runner,
		recorder: recorder,
		logger:   logger,
		m:        m,
	}
}

// PerformInput is one check-in submission: the contact values the verifier
// saw and whether each was confirmed current.
type PerformInput struct {
	StudentID       uuid.UUID
	Phone           string
	Address         string
	Email           string
	PhoneVerified   bool
	AddressVerified bool
	EmailVerified   bool
}

// Perform runs the check-in for the current quarter. Agency and admin only.
//
// Everything happens in one transaction: contact-change log rows, the forced
// unverified flags, the student row update, the quarter upsert and the audit
// record commit together or not at all. A submitted value that differs from
// the stored one can never count as verified, whatever the verifier claimed.
func (s *Service) Perform(ctx context.Context, input PerformInput) (QuarterlyCheckin, error) {
	ident, err := requireManager(ctx)
	if err != nil {
		return QuarterlyCheckin{}, err
	}

	st, err := s.students.GetByID(ctx, input.StudentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return QuarterlyCheckin{}, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	if err != nil {
		return QuarterlyCheckin{}, dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}

	now := requestcontext.Now(ctx)
	bucket := Bucket(now)

	c := QuarterlyCheckin{
		ID:              uuid.New(),
		StudentID:       st.ID,
		QuarterBucket:   bucket,
		CheckInDate:     now,
		PhoneVerified:   input.PhoneVerified,
		AddressVerified: input.AddressVerified,
		EmailVerified:   input.EmailVerified,
		CheckedBy:       ident.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	type change struct {
		field    student.ContactField
		oldValue string
		newValue string
		verified *bool
		apply    func(*student.Student)
	}
	changes := []change{}
	if input.Phone != st.Phone {
		changes = append(changes, change{
			field: student.FieldPhone, oldValue: st.Phone, newValue: input.Phone,
			verified: &c.PhoneVerified,
			apply:    func(x *student.Student) { x.Phone = input.Phone },
		})
	}
	if input.Address != st.Address {
		changes = append(changes, change{
			field: student.FieldAddress, oldValue: st.Address, newValue: input.Address,
			verified: &c.AddressVerified,
			apply:    func(x *student.Student) { x.Address = input.Address },
		})
	}
	if input.Email != st.Email {
		changes = append(changes, change{
			field: student.FieldEmail, oldValue: st.Email, newValue: input.Email,
			verified: &c.EmailVerified,
			apply:    func(x *student.Student) { x.Email = input.Email },
		})
	}

	auditDetails := map[string]any{"quarter": bucket, "student_id": st.ID.String()}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		for _, ch := range changes {
			// A just-changed value cannot simultaneously be confirmed
			// current.
			*ch.verified = false
			ch.apply(&st)

			if err := s.students.AppendChangeLog(ctx, student.ContactChangeLog{
				ID:          uuid.New(),
				StudentID:   st.ID,
				FieldName:   ch.field,
				OldValue:    ch.oldValue,
				NewValue:    ch.newValue,
				ChangedBy:   ident.UserID,
				CheckInDate: &now,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			auditDetails[string(ch.field)] = ch.newValue
		}

		if len(changes) > 0 {
			st.UpdatedAt = now
			if err := s.students.Update(ctx, st); err != nil {
				return err
			}
		}
		if err := s.store.Upsert(ctx, c); err != nil {
			return err
		}

		// Written inside the tx so the audit row vanishes with a rollback.
		s.recorder.Record(ctx, &ident.UserID, audit.ActionUpdate, auditDetails)
		return nil
	})
	if err != nil {
		return QuarterlyCheckin{}, dErrors.Wrap(err, dErrors.CodeInternal, "perform check-in")
	}

	s.m.CheckinsPerformed.Inc()

	// Return the durable row; an earlier check-in this quarter keeps its id.
	current, err := s.store.GetCurrent(ctx, st.ID, bucket)
	if err != nil {
		return c, nil
	}
	return current, nil
}

// Current returns the student's check-in for the current quarter, if any.
func (s *Service) Current(ctx context.Context, studentID uuid.UUID) (QuarterlyCheckin, bool, error) {
	if _, err := requireManager(ctx); err != nil {
		return QuarterlyCheckin{}, false, err
	}
	c, err := s.store.GetCurrent(ctx, studentID, Bucket(requestcontext.Now(ctx)))
	if errors.Is(err, sentinel.ErrNotFound) {
		return QuarterlyCheckin{}, false, nil
	}
	if err != nil {
		return QuarterlyCheckin{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "get checkin")
	}
	return c, true, nil
}

// QuarterSummary reports completion for a quarter: how many enrolled
// students exist and how many were checked in. The two counts are
// independent reads and fan out concurrently.
func (s *Service) QuarterSummary(ctx context.Context, year, quarter int) (Summary, error) {
	if _, err := requireManager(ctx); err != nil {
		return Summary{}, err
	}
	if quarter < 1 || quarter > 4 {
		return Summary{}, dErrors.New(dErrors.CodeValidation, "quarter must be 1 to 4")
	}

	bucket := BucketFor(year, quarter)

	var (
		total   int
		checked int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		students, err := s.students.List(gctx, student.Filter{Status: student.StatusEnrolled})
		if err != nil {
			return err
		}
		total = len(students)
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.ListByBucket(gctx, bucket)
		if err != nil {
			return err
		}
		seen := make(map[uuid.UUID]struct{}, len(rows))
		for _, c := range rows {
			seen[c.StudentID] = struct{}{}
		}
		checked = len(seen)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "summarize quarter")
	}

	sum := Summary{
		Year:          year,
		Quarter:       quarter,
		TotalStudents: total,
		CheckedIn:     checked,
		Unchecked:     max(total-checked, 0),
	}
	if total > 0 {
		sum.CompletionRate = float64(checked) / float64(total)
	}
	return sum, nil
}

func requireManager(ctx context.Context) (requestcontext.RequestIdentity, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return requestcontext.RequestIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := authz.RequireRole(ident, requestcontext.RoleAdmin, requestcontext.RoleAgency); err != nil {
		return requestcontext.RequestIdentity{}, err
	}
	return ident, nil
}
