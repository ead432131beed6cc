package enrollment

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/tutoring"
)

// Email templates
const (
	tmplApproved  = "enrollment_approved"
	tmplRejected  = "enrollment_rejected"
	tmplActivated = "enrollment_activated"
)

// Notice is the data given to enrollment email templates.
type Notice struct {
	StudentName     string
	SessionSigla    string
	SessionName     string
	Price           string
	Reason          string
	TransactionCode string
}

// notify emails the student of e once a transition is committed.
// Failures are logged: the transition itself already succeeded.
func (svc *Service) notify(ctx context.Context, e Enrollment, tmpl, subject string, fill func(*Notice)) {
	if svc.mailSvc == nil {
		return
	}

	std, err := svc.store.GetStudent(ctx, e.StudentID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment %d: %v", e.ID, err), err)
		return
	}
	if std.Email == "" {
		return
	}
	sess, err := svc.store.GetSession(ctx, e.SessionID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notifying enrollment %d: %v", e.ID, err), err)
		return
	}

	notice := Notice{
		StudentName:  std.Name,
		SessionSigla: sess.Sigla,
		SessionName:  sess.Name,
		Reason:       e.Reason,
	}
	if sess.Price > 0 {
		notice.Price = tutoring.FormatPrice(sess.Price)
	}
	if fill != nil {
		fill(&notice)
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: std.Name, Address: std.Email}},
		Subject:      fmt.Sprintf("%s: %s", sess.Sigla, subject),
		TemplateName: tmpl,
		TemplateData: notice,
	})
}
