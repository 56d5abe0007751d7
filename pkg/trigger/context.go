// Package trigger builds evaluation contexts for incoming events and decides
// which automation conditions they satisfy.
package trigger

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

// Context is the read-only data a condition is evaluated against.
type Context map[string]any

// Lookup resolves a dotted path through nested maps. When the walk fails the
// path is tried as a literal top-level key.
func (c Context) Lookup(path string) (any, bool) {
	var current any = map[string]any(c)

	for _, segment := range strings.Split(path, ".") {
		object, ok := asObject(current)
		if !ok {
			return c.literal(path)
		}

		current, ok = object[segment]
		if !ok {
			return c.literal(path)
		}
	}

	return current, true
}

func (c Context) literal(path string) (any, bool) {
	value, ok := c[path]

	return value, ok
}

// Payload is the flattened lead projection plus identifiers, sent as webhook data.
func (c Context) Payload() map[string]any {
	payload := make(map[string]any, len(leadProjection)+3)

	for _, key := range leadProjection {
		if value, ok := c[key]; ok {
			payload[key] = value
		}
	}

	payload["builder_id"] = c["builder_id"]

	if id, ok := c.identifier("lead", "lead_id"); ok {
		payload["lead_id"] = id
	}

	if id, ok := c.identifier("property", "property_id"); ok {
		payload["property_id"] = id
	}

	return payload
}

// identifier reads the id of a nested record, falling back to the raw event.
func (c Context) identifier(record, eventKey string) (any, bool) {
	if object, ok := asObject(c[record]); ok {
		return object["id"], true
	}

	if event, ok := asObject(c["event"]); ok {
		id, found := event[eventKey]

		return id, found
	}

	return nil, false
}

// RefreshLead replaces the lead projection and nested lead with lead's
// current values.
func (c Context) RefreshLead(lead *models.Lead) {
	maps.Copy(c, LeadProjection(lead))
	c["lead"] = LeadMap(lead)
}

// Clone returns a shallow copy that can be modified without affecting c.
func (c Context) Clone() Context {
	return maps.Clone(c)
}

func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case Context:
		return v, true
	default:
		return nil, false
	}
}

var leadProjection = []string{
	"score", "status", "stage", "budget", "email", "phone",
	"created_at", "last_contact_date", "contact_count", "tags", "source",
}

// ContextBuilder loads the records an event refers to.
type ContextBuilder struct {
	leads      persistence.LeadRepository
	properties persistence.PropertyRepository
}

func NewContextBuilder(leads persistence.LeadRepository, properties persistence.PropertyRepository) *ContextBuilder {
	return &ContextBuilder{leads: leads, properties: properties}
}

// Build assembles the evaluation context for event. Event data keys are
// exposed at the top level; the lead projection overrides them.
func (b *ContextBuilder) Build(ctx context.Context, event events.LeadEvent) (Context, error) {
	if event.BuilderID == "" {
		return nil, events.ErrBuilderIDRequired
	}

	result := make(Context, len(event.Data)+len(leadProjection)+4)

	maps.Copy(result, event.Data)

	result["event"] = event.AsMap()
	result["builder_id"] = event.BuilderID

	propertyID := event.PropertyID

	if event.LeadID != "" {
		lead, err := b.leads.ByID(ctx, event.LeadID)

		switch {
		case persistence.IsLeadNotFound(err):
		case err != nil:
			return nil, fmt.Errorf("failed to load lead %s: %w", event.LeadID, err)
		case lead.BuilderID == event.BuilderID:
			result["lead"] = LeadMap(lead)
			maps.Copy(result, LeadProjection(lead))

			if propertyID == "" {
				propertyID = lead.PropertyID
			}
		}
	}

	if propertyID != "" {
		property, err := b.properties.ByID(ctx, propertyID)

		switch {
		case persistence.IsPropertyNotFound(err):
		case err != nil:
			return nil, fmt.Errorf("failed to load property %s: %w", propertyID, err)
		case property.BuilderID == event.BuilderID:
			result["property"] = PropertyMap(property)
		}
	}

	return result, nil
}

// LeadProjection is the flattened view of a lead that conditions read directly.
func LeadProjection(lead *models.Lead) map[string]any {
	return map[string]any{
		"score":             lead.Score,
		"status":            lead.Status,
		"stage":             lead.Stage,
		"budget":            lead.Budget,
		"email":             lead.Email,
		"phone":             lead.Phone,
		"created_at":        formatTime(&lead.CreatedAt),
		"last_contact_date": formatTime(lead.LastContactDate),
		"contact_count":     float64(lead.ContactCount),
		"tags":              stringsToAny(lead.Tags),
		"source":            lead.Source,
	}
}

// LeadMap is the nested `lead` object of a context.
func LeadMap(lead *models.Lead) map[string]any {
	object := LeadProjection(lead)
	object["id"] = lead.ID
	object["builder_id"] = lead.BuilderID
	object["property_id"] = lead.PropertyID
	object["name"] = lead.Name

	return object
}

// PropertyMap is the nested `property` object of a context.
func PropertyMap(property *models.Property) map[string]any {
	return map[string]any{
		"id":            property.ID,
		"builder_id":    property.BuilderID,
		"title":         property.Title,
		"city":          property.City,
		"locality":      property.Locality,
		"property_type": property.PropertyType,
		"price":         property.Price,
		"bedrooms":      float64(property.Bedrooms),
		"status":        property.Status,
	}
}

func formatTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}

	return t.UTC().Format(time.RFC3339)
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}

	return out
}
