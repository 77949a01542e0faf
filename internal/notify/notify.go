// Package notify publishes welcome-email jobs when a new account is created.
// Like the search mirror it rides the response hook pipeline, so mail delivery
// stays out of the signup handler entirely.
package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/halcyonlab/usergate/internal/domain/entity"
	"github.com/halcyonlab/usergate/internal/hooks"
	"github.com/halcyonlab/usergate/pkg/helpers"
	"github.com/halcyonlab/usergate/pkg/mailer"
	"github.com/halcyonlab/usergate/pkg/mailer/templates"
)

type Notifier struct {
	Publisher *helpers.RabbitPublisher
	AppName   string
	Logger    *logrus.Logger
}

func NewNotifier(pub *helpers.RabbitPublisher, appName string, logger *logrus.Logger) *Notifier {
	return &Notifier{Publisher: pub, AppName: appName, Logger: logger}
}

func (n *Notifier) Bind(b *hooks.Binder) error {
	return b.On(hooks.Response, "signup", n.welcomeHook)
}

// welcomeHook enqueues a welcome email for the freshly created user. Publish
// failures are logged and never block the response.
func (n *Notifier) welcomeHook(req *hooks.RequestInfo, res *hooks.ResponseInfo, advance hooks.Advance) {
	if u, ok := userFromBody(res); ok {
		n.publish(u)
	}
	advance(nil)
}

func userFromBody(res *hooks.ResponseInfo) (entity.PublicUser, bool) {
	data, ok := res.Body["data"].(map[string]any)
	if !ok {
		return entity.PublicUser{}, false
	}
	u, ok := data["user"].(entity.PublicUser)
	return u, ok
}

func (n *Notifier) publish(u entity.PublicUser) {
	job := mailer.EmailJob{
		To:       u.Email,
		Template: templates.Welcome,
		Data: map[string]any{
			"Name":    u.Fullname,
			"AppName": n.AppName,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Publisher.PublishJSON(ctx, job); err != nil {
		n.Logger.WithError(err).WithField("user_id", u.ID).Warn("welcome email publish failed")
	}
}
