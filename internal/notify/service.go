package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"frisk/internal/absence"
	"frisk/internal/student"
	"frisk/internal/university"
)

// Service builds and delivers absence notification mail. It satisfies
// absence.Notifier so the absence workflow can trigger it inline.
type Service struct {
	universities university.Store
	sender       Sender
	logger       *slog.Logger
}

func NewService(universities university.Store, sender Sender, logger *slog.Logger) *Service {
	return &Service{universities: universities, sender: sender, logger: logger}
}

// AbsenceRecorded mails the student's university contacts. No registered
// contacts is not an error; the university simply opted out.
func (s *Service) AbsenceRecorded(ctx context.Context, st student.Student, a absence.Absence) error {
	u, err := s.universities.GetByID(ctx, st.UniversityID)
	if err != nil {
		return fmt.Errorf("load university %s: %w", st.UniversityID, err)
	}
	contacts, err := s.universities.ListContacts(ctx, st.UniversityID)
	if err != nil {
		return fmt.Errorf("load contacts for %s: %w", st.UniversityID, err)
	}
	if len(contacts) == 0 {
		s.logger.InfoContext(ctx, "absence notification skipped, university has no contacts",
			"university_id", st.UniversityID, "absence_id", a.ID)
		return nil
	}

	to := make([]string, 0, len(contacts))
	for _, c := range contacts {
		to = append(to, c.Email)
	}

	subject := fmt.Sprintf("[FRISK] Absence recorded for %s (%s)", st.Name, st.StudentNo)
	if err := s.sender.Send(ctx, to, subject, renderAbsenceMail(u, st, a)); err != nil {
		return fmt.Errorf("send absence notification: %w", err)
	}

	s.logger.InfoContext(ctx, "absence notification sent",
		"absence_id", a.ID, "university_id", u.ID, "recipients", len(to))
	return nil
}

func renderAbsenceMail(u university.University, st student.Student, a absence.Absence) string {
	var b strings.Builder
	b.WriteString("<h2>Absence Notification</h2>")
	fmt.Fprintf(&b, "<p>An absence has been recorded for a student of %s.</p>", html.EscapeString(u.Name))
	b.WriteString("<table>")
	row := func(label, value string) {
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>",
			label, html.EscapeString(value))
	}
	row("Student", st.Name)
	row("Student number", st.StudentNo)
	row("Date of absence", a.AbsenceDate.Format("2006-01-02"))
	row("Reason", a.Reason.Label())
	if a.Note != "" {
		row("Note", a.Note)
	}
	b.WriteString("</table>")
	b.WriteString("<p>Please log in to FRISK for the full record.</p>")
	return b.String()
}
