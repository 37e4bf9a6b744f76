package models

import (
	"fmt"
	"strings"
	"time"
)

// Course is an immutable course definition. Catalog refreshes replace courses wholesale.
type Course struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Capacity int       `json:"capacity" yaml:"capacity"`
	OpensAt  time.Time `json:"opens_at" yaml:"opens_at"`
	ClosesAt time.Time `json:"closes_at" yaml:"closes_at"`
	// Zero means unbounded.
	MinAge int `json:"min_age,omitempty" yaml:"min_age,omitempty"`
	MaxAge int `json:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// Validate checks that the definition can be enforced.
func (c Course) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("course id is required")
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("course %s: capacity must be positive, got %d", c.ID, c.Capacity)
	}
	if c.OpensAt.IsZero() || c.ClosesAt.IsZero() {
		return fmt.Errorf("course %s: registration window is required", c.ID)
	}
	if !c.ClosesAt.After(c.OpensAt) {
		return fmt.Errorf("course %s: window closes before it opens", c.ID)
	}
	if c.MinAge < 0 || c.MaxAge < 0 {
		return fmt.Errorf("course %s: age bounds must not be negative", c.ID)
	}
	if c.MaxAge > 0 && c.MinAge > c.MaxAge {
		return fmt.Errorf("course %s: min_age %d exceeds max_age %d", c.ID, c.MinAge, c.MaxAge)
	}
	return nil
}

// IsOpen reports whether now falls inside [OpensAt, ClosesAt).
func (c Course) IsOpen(now time.Time) bool {
	return !now.Before(c.OpensAt) && now.Before(c.ClosesAt)
}

// AdmitsAge reports whether age satisfies the course's age bounds.
func (c Course) AdmitsAge(age int) bool {
	if c.MinAge > 0 && age < c.MinAge {
		return false
	}
	if c.MaxAge > 0 && age > c.MaxAge {
		return false
	}
	return true
}
