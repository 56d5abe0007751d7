// Package models defines the records shared by the evaluation and dispatch pipeline.
package models

import "time"

// Lead is a prospective buyer owned by one builder.
type Lead struct {
	ID              string     `json:"id"`
	BuilderID       string     `json:"builder_id"`
	PropertyID      string     `json:"property_id,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Score           float64    `json:"score"`
	Status          string     `json:"status"`
	Stage           string     `json:"stage"`
	Budget          float64    `json:"budget"`
	Source          string     `json:"source"`
	Tags            []string   `json:"tags"`
	ContactCount    int        `json:"contact_count"`
	LastContactDate *time.Time `json:"last_contact_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasTag reports whether the lead carries tag.
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

// Property is a listing a lead can be attached to.
type Property struct {
	ID           string    `json:"id"`
	BuilderID    string    `json:"builder_id"`
	Title        string    `json:"title"`
	City         string    `json:"city"`
	Locality     string    `json:"locality"`
	PropertyType string    `json:"property_type"`
	Price        float64   `json:"price"`
	Bedrooms     int       `json:"bedrooms"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
