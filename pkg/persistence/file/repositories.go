package file

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

type automationRecord = models.Automation

// AutomationRepository handles automation-related file operations.
type AutomationRepository struct {
	records collection[automationRecord]
}

func (r *AutomationRepository) ByID(_ context.Context, id string) (*models.Automation, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	return r.byID(id)
}

func (r *AutomationRepository) byID(id string) (*models.Automation, error) {
	automation, err := r.records.read(id)
	if errors.Is(err, errRecordMissing) {
		return nil, persistence.NewRecordError("ByID", "automation", id, persistence.ErrAutomationNotFound)
	}

	return automation, err
}

func (r *AutomationRepository) ByBuilder(_ context.Context, builderID string) ([]*models.Automation, error) {
	return r.filter(func(a *models.Automation) bool { return a.BuilderID == builderID })
}

func (r *AutomationRepository) ActiveByBuilder(_ context.Context, builderID string) ([]*models.Automation, error) {
	return r.filter(func(a *models.Automation) bool { return a.BuilderID == builderID && a.IsActive })
}

func (r *AutomationRepository) filter(keep func(*models.Automation) bool) ([]*models.Automation, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, err
	}

	result := make([]*models.Automation, 0, len(all))

	for _, automation := range all {
		if keep(automation) {
			result = append(result, automation)
		}
	}

	slices.SortFunc(result, func(a, b *models.Automation) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return result, nil
}

func (r *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := stamp(&automation.ID, &automation.CreatedAt, &automation.UpdatedAt)
	if err != nil {
		return err
	}

	return r.records.write(automation.ID, automation)
}

func (r *AutomationRepository) Delete(_ context.Context, id string) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := r.records.remove(id)
	if errors.Is(err, errRecordMissing) {
		return persistence.NewRecordError("Delete", "automation", id, persistence.ErrAutomationNotFound)
	}

	return err
}

func (r *AutomationRepository) RecordExecution(_ context.Context, id string, success bool, at time.Time) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	automation, err := r.byID(id)
	if err != nil {
		return err
	}

	automation.TotalExecutions++

	if success {
		automation.SuccessfulExecutions++
	} else {
		automation.FailedExecutions++
	}

	executed := at.UTC()
	automation.LastExecutedAt = &executed

	return r.records.write(id, automation)
}

// webhookRecord keeps the secret on disk even though the model hides it from JSON.
type webhookRecord struct {
	*models.Webhook

	StoredSecret string `json:"secret"`
}

// WebhookRepository handles webhook-related file operations.
type WebhookRepository struct {
	records collection[webhookRecord]
}

func (r *WebhookRepository) ByID(_ context.Context, id string) (*models.Webhook, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	return r.byID(id)
}

func (r *WebhookRepository) byID(id string) (*models.Webhook, error) {
	record, err := r.records.read(id)
	if errors.Is(err, errRecordMissing) {
		return nil, persistence.NewRecordError("ByID", "webhook", id, persistence.ErrWebhookNotFound)
	}

	if err != nil {
		return nil, err
	}

	return unwrapWebhook(record), nil
}

func unwrapWebhook(record *webhookRecord) *models.Webhook {
	webhook := record.Webhook
	if webhook == nil {
		webhook = &models.Webhook{}
	}

	webhook.Secret = record.StoredSecret

	return webhook
}

func (r *WebhookRepository) ByBuilder(_ context.Context, builderID string) ([]*models.Webhook, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, err
	}

	webhooks := make([]*models.Webhook, 0, len(all))

	for _, record := range all {
		webhook := unwrapWebhook(record)
		if webhook.BuilderID == builderID {
			webhooks = append(webhooks, webhook)
		}
	}

	slices.SortFunc(webhooks, func(a, b *models.Webhook) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return webhooks, nil
}

func (r *WebhookRepository) Save(_ context.Context, webhook *models.Webhook) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := stamp(&webhook.ID, &webhook.CreatedAt, &webhook.UpdatedAt)
	if err != nil {
		return err
	}

	return r.records.write(webhook.ID, &webhookRecord{Webhook: webhook, StoredSecret: webhook.Secret})
}

func (r *WebhookRepository) Delete(_ context.Context, id string) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := r.records.remove(id)
	if errors.Is(err, errRecordMissing) {
		return persistence.NewRecordError("Delete", "webhook", id, persistence.ErrWebhookNotFound)
	}

	return err
}

func (r *WebhookRepository) RecordDelivery(_ context.Context, id string, outcome models.DeliveryOutcome) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	webhook, err := r.byID(id)
	if err != nil {
		return err
	}

	webhook.TotalDeliveries++

	if outcome.State == models.DeliverySuccess {
		webhook.SuccessfulDeliveries++
		webhook.LastError = ""
	} else {
		webhook.FailedDeliveries++
		webhook.LastError = outcome.Error
	}

	delivered := outcome.Delivered.UTC()
	webhook.LastDeliveryAt = &delivered
	webhook.LastDeliveryStatus = outcome.State

	return r.records.write(id, &webhookRecord{Webhook: webhook, StoredSecret: webhook.Secret})
}

type leadRecord = models.Lead

// LeadRepository handles lead-related file operations.
type LeadRepository struct {
	records collection[leadRecord]
}

func (r *LeadRepository) ByID(_ context.Context, id string) (*models.Lead, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	lead, err := r.records.read(id)
	if errors.Is(err, errRecordMissing) {
		return nil, persistence.NewRecordError("ByID", "lead", id, persistence.ErrLeadNotFound)
	}

	return lead, err
}

func (r *LeadRepository) Save(_ context.Context, lead *models.Lead) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := stamp(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return err
	}

	return r.records.write(lead.ID, lead)
}

type propertyRecord = models.Property

// PropertyRepository handles property-related file operations.
type PropertyRepository struct {
	records collection[propertyRecord]
}

func (r *PropertyRepository) ByID(_ context.Context, id string) (*models.Property, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	property, err := r.records.read(id)
	if errors.Is(err, errRecordMissing) {
		return nil, persistence.NewRecordError("ByID", "property", id, persistence.ErrPropertyNotFound)
	}

	return property, err
}

func (r *PropertyRepository) Save(_ context.Context, property *models.Property) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := stamp(&property.ID, &property.CreatedAt, &property.UpdatedAt)
	if err != nil {
		return err
	}

	return r.records.write(property.ID, property)
}

type deliveryRecord = models.Delivery

// DeliveryRepository handles webhook delivery history files.
type DeliveryRepository struct {
	records collection[deliveryRecord]
}

func (r *DeliveryRepository) Save(_ context.Context, delivery *models.Delivery) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	err := stamp(&delivery.ID, &delivery.CreatedAt, &delivery.UpdatedAt)
	if err != nil {
		return err
	}

	return r.records.write(delivery.ID, delivery)
}

func (r *DeliveryRepository) ByID(_ context.Context, id string) (*models.Delivery, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	delivery, err := r.records.read(id)
	if errors.Is(err, errRecordMissing) {
		return nil, persistence.NewRecordError("ByID", "delivery", id, persistence.ErrDeliveryNotFound)
	}

	return delivery, err
}

func (r *DeliveryRepository) ByWebhook(_ context.Context, webhookID string, limit int) ([]*models.Delivery, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, err
	}

	deliveries := make([]*models.Delivery, 0, len(all))

	for _, delivery := range all {
		if delivery.WebhookID == webhookID {
			deliveries = append(deliveries, delivery)
		}
	}

	slices.SortFunc(deliveries, func(a, b *models.Delivery) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	return deliveries[:min(len(deliveries), limitOrDefault(limit))], nil
}

type runRecord = models.AutomationRun

// RunRepository handles automation run history files.
type RunRepository struct {
	records collection[runRecord]
}

func (r *RunRepository) Save(_ context.Context, run *models.AutomationRun) error {
	r.records.p.mu.Lock()
	defer r.records.p.mu.Unlock()

	if run.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}

		run.ID = id
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	return r.records.write(run.ID, run)
}

func (r *RunRepository) ByAutomation(_ context.Context, automationID string, limit int) ([]*models.AutomationRun, error) {
	r.records.p.mu.RLock()
	defer r.records.p.mu.RUnlock()

	all, err := r.records.all()
	if err != nil {
		return nil, err
	}

	runs := make([]*models.AutomationRun, 0, len(all))

	for _, run := range all {
		if run.AutomationID == automationID {
			runs = append(runs, run)
		}
	}

	slices.SortFunc(runs, func(a, b *models.AutomationRun) int {
		return cmp.Or(b.StartedAt.Compare(a.StartedAt), cmp.Compare(b.ID, a.ID))
	})

	return runs[:min(len(runs), limitOrDefault(limit))], nil
}
