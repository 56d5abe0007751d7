package registry

import (
	"log/slog"
	"net/http"

	"github.com/dukex/leadflow/pkg/actions/crm"
	"github.com/dukex/leadflow/pkg/actions/email"
	"github.com/dukex/leadflow/pkg/actions/sms"
	"github.com/dukex/leadflow/pkg/actions/tag"
	"github.com/dukex/leadflow/pkg/actions/webhook"
	"github.com/dukex/leadflow/pkg/persistence"
)

// Dependencies are the collaborators of the built-in actions. Nil messaging
// collaborators fall back to implementations that only log.
type Dependencies struct {
	Logger     *slog.Logger
	Leads      persistence.LeadRepository
	Notifier   webhook.Notifier
	Mailer     email.Mailer
	SMS        sms.Sender
	CRM        crm.Syncer
	HTTPClient *http.Client
}

// RegisterDefaultActions registers send_email, send_sms, crm_sync, tag and
// call_webhook.
func (r *Registry) RegisterDefaultActions(deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = r.logger
	}

	mailer := deps.Mailer
	if mailer == nil {
		mailer = email.LogMailer{Logger: logger.With("module", "email")}
	}

	sender := deps.SMS
	if sender == nil {
		sender = sms.LogSender{Logger: logger.With("module", "sms")}
	}

	syncer := deps.CRM
	if syncer == nil {
		syncer = crm.LogSyncer{Logger: logger.With("module", "crm")}
	}

	r.RegisterAction(email.NewActionFactory(mailer))
	r.RegisterAction(sms.NewActionFactory(sender))
	r.RegisterAction(crm.NewActionFactory(syncer))
	r.RegisterAction(tag.NewActionFactory(deps.Leads))
	r.RegisterAction(webhook.NewActionFactory(deps.Notifier, deps.HTTPClient))
}
