package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/lib/pq"
)

// LeadRepository handles lead-related database operations.
type LeadRepository struct {
	db *sql.DB
}

func (r *LeadRepository) ByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `
		SELECT
			id
		  , builder_id
		  , property_id
		  , name
		  , email
		  , phone
		  , score
		  , status
		  , stage
		  , budget
		  , source
		  , tags
		  , contact_count
		  , last_contact_date
		  , created_at
		  , updated_at
		FROM leads
		WHERE id = $1
	`

	var (
		lead        models.Lead
		lastContact sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lead.ID,
		&lead.BuilderID,
		&lead.PropertyID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Score,
		&lead.Status,
		&lead.Stage,
		&lead.Budget,
		&lead.Source,
		pq.Array(&lead.Tags),
		&lead.ContactCount,
		&lastContact,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("ByID", "lead", id, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	lead.LastContactDate = timePtr(lastContact)
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = lead.UpdatedAt.UTC()

	return &lead, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	err := stamp(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leads (
			id, builder_id, property_id, name, email, phone, score, status, stage,
			budget, source, tags, contact_count, last_contact_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			score = EXCLUDED.score,
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			budget = EXCLUDED.budget,
			source = EXCLUDED.source,
			tags = EXCLUDED.tags,
			contact_count = EXCLUDED.contact_count,
			last_contact_date = EXCLUDED.last_contact_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID,
		lead.BuilderID,
		lead.PropertyID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Score,
		lead.Status,
		lead.Stage,
		lead.Budget,
		lead.Source,
		pq.Array(lead.Tags),
		lead.ContactCount,
		nullTime(lead.LastContactDate),
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

// PropertyRepository handles property-related database operations.
type PropertyRepository struct {
	db *sql.DB
}

func (r *PropertyRepository) ByID(ctx context.Context, id string) (*models.Property, error) {
	query := `
		SELECT
			id
		  , builder_id
		  , title
		  , city
		  , locality
		  , property_type
		  , price
		  , bedrooms
		  , status
		  , created_at
		  , updated_at
		FROM properties
		WHERE id = $1
	`

	var property models.Property

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&property.ID,
		&property.BuilderID,
		&property.Title,
		&property.City,
		&property.Locality,
		&property.PropertyType,
		&property.Price,
		&property.Bedrooms,
		&property.Status,
		&property.CreatedAt,
		&property.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("ByID", "property", id, persistence.ErrPropertyNotFound)
		}

		return nil, fmt.Errorf("failed to scan property: %w", err)
	}

	property.CreatedAt = property.CreatedAt.UTC()
	property.UpdatedAt = property.UpdatedAt.UTC()

	return &property, nil
}

func (r *PropertyRepository) Save(ctx context.Context, property *models.Property) error {
	err := stamp(&property.ID, &property.CreatedAt, &property.UpdatedAt)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO properties (
			id, builder_id, title, city, locality, property_type, price, bedrooms, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			city = EXCLUDED.city,
			locality = EXCLUDED.locality,
			property_type = EXCLUDED.property_type,
			price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		property.ID,
		property.BuilderID,
		property.Title,
		property.City,
		property.Locality,
		property.PropertyType,
		property.Price,
		property.Bedrooms,
		property.Status,
		property.CreatedAt,
		property.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save property: %w", err)
	}

	return nil
}
