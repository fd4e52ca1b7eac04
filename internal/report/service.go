package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"frisk/internal/absence"
	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/student"
	"frisk/internal/university"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/sentinel"
	"frisk/pkg/requestcontext"
)

// Service builds monthly absence reports.
type Service struct {
	students     student.Store
	absences     absence.Store
	universities university.Store
	recorder     *audit.Recorder
	logger       *slog.Logger
}

func NewService(students student.Store, absences absence.Store, universities university.Store,
	recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		students:     students,
		absences:     absences,
		universities: universities,
		recorder:     recorder,
		logger:       logger,
	}
}

// Monthly aggregates one university's absences for a calendar month. A
// university-role caller is always pinned to their own university; agency
// and admin callers must name one.
func (s *Service) Monthly(ctx context.Context, year int, month time.Month, universityID *uuid.UUID) (Monthly, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return Monthly{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if ident.Role == requestcontext.RoleUniversity {
		if ident.UniversityID == nil {
			return Monthly{}, dErrors.New(dErrors.CodeForbidden, "account has no university scope")
		}
		universityID = ident.UniversityID
	}
	if universityID == nil {
		return Monthly{}, dErrors.New(dErrors.CodeValidation, "university_id is required")
	}
	if err := authz.RequireUniversityScope(ident, *universityID); err != nil {
		return Monthly{}, err
	}
	if month < time.January || month > time.December {
		return Monthly{}, dErrors.New(dErrors.CodeValidation, "month must be 1 to 12")
	}

	// The university row and the student roster are independent reads.
	var (
		u        university.University
		students []student.Student
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		u, err = s.universities.GetByID(gctx, *universityID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "university not found")
		}
		return err
	})
	g.Go(func() error {
		var err error
		students, err = s.students.List(gctx, student.Filter{
			UniversityID: universityID,
			Status:       student.StatusEnrolled,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return Monthly{}, err
		}
		return Monthly{}, dErrors.Wrap(err, dErrors.CodeInternal, "gather report inputs")
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	ids := make([]uuid.UUID, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	absences, err := s.absences.List(ctx, absence.Filter{
		StudentIDs: ids,
		From:       from,
		To:         to,
	})
	if err != nil {
		return Monthly{}, dErrors.Wrap(err, dErrors.CodeInternal, "list absences")
	}

	perStudent := make(map[uuid.UUID]int, len(students))
	byReason := make(map[absence.Reason]int)
	for _, a := range absences {
		perStudent[a.StudentID]++
		byReason[a.Reason]++
	}

	rep := Monthly{
		UniversityID:   u.ID,
		UniversityName: u.Name,
		Year:           year,
		Month:          month,
		GeneratedAt:    requestcontext.Now(ctx),
		TotalStudents:  len(students),
		TotalAbsences:  len(absences),
		ByReason:       byReason,
	}
	for _, st := range students {
		line := StudentLine{
			StudentID: st.ID,
			StudentNo: st.StudentNo,
			Name:      st.Name,
			Absences:  perStudent[st.ID],
			AtRisk:    perStudent[st.ID] >= riskThreshold,
		}
		rep.Students = append(rep.Students, line)
		if line.AtRisk {
			rep.RiskStudents = append(rep.RiskStudents, line)
		}
	}
	// Most absent first so the problem cases lead the table.
	sort.SliceStable(rep.Students, func(i, j int) bool {
		return rep.Students[i].Absences > rep.Students[j].Absences
	})
	sort.SliceStable(rep.RiskStudents, func(i, j int) bool {
		return rep.RiskStudents[i].Absences > rep.RiskStudents[j].Absences
	})
	if len(students) > 0 {
		rep.AbsenceRate = float64(len(absences)) / float64(len(students)*workingDaysPerMonth)
	}

	s.recorder.Download(ctx, ident.UserID, "report",
		fmt.Sprintf("monthly report %d-%02d for %s", year, int(month), u.Name))
	return rep, nil
}
