package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Clinic struct {
	bun.BaseModel `bun:"table:clinics"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	TimeZone  string    `bun:"time_zone,notnull"`
	OpenTime  string    `bun:"open_time,nullzero"`
	CloseTime string    `bun:"close_time,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (c *Clinic) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return assignIdentity(&c.ID, &c.CreatedAt)
	}
	return nil
}

func (c Clinic) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.TimeZone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("clinic %s: time zone %q: %w", c.ID, tz, err)
	}
	return loc, nil
}

// Hours returns the clinic's opening hours, falling back to def for
// whichever bound the clinic leaves unset.
func (c Clinic) Hours(def BusinessHours) (BusinessHours, error) {
	h := def
	if strings.TrimSpace(c.OpenTime) != "" {
		open, err := ParseClock(c.OpenTime)
		if err != nil {
			return BusinessHours{}, fmt.Errorf("clinic %s: open_time: %w", c.ID, err)
		}
		h.Open = open
	}
	if strings.TrimSpace(c.CloseTime) != "" {
		closing, err := ParseClock(c.CloseTime)
		if err != nil {
			return BusinessHours{}, fmt.Errorf("clinic %s: close_time: %w", c.ID, err)
		}
		h.Close = closing
	}
	if !h.Valid() {
		return BusinessHours{}, fmt.Errorf("clinic %s: hours %s close before they open", c.ID, h)
	}
	return h, nil
}

type Patient struct {
	bun.BaseModel `bun:"table:patients"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	FullName  string    `bun:"full_name,notnull"`
	Email     string    `bun:"email,nullzero"`
	Phone     string    `bun:"phone,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (p *Patient) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return assignIdentity(&p.ID, &p.CreatedAt)
	}
	return nil
}

type Doctor struct {
	bun.BaseModel `bun:"table:doctors"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	ClinicID  uuid.UUID `bun:"clinic_id,notnull,type:uuid"`
	FullName  string    `bun:"full_name,notnull"`
	Specialty string    `bun:"specialty,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (d *Doctor) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return assignIdentity(&d.ID, &d.CreatedAt)
	}
	return nil
}

func assignIdentity(id *uuid.UUID, createdAt *time.Time) error {
	if *id == uuid.Nil {
		v, err := uuid.NewV7()
		if err != nil {
			return err
		}
		*id = v
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
	return nil
}
