package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type GigStatus string

const (
	GigUpcoming  GigStatus = "upcoming"
	GigCompleted GigStatus = "completed"
	GigCancelled GigStatus = "cancelled"
)

const MaxGigTitleLength = 200

func ParseGigStatus(s string) (GigStatus, error) {
	switch st := GigStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case GigUpcoming, GigCompleted, GigCancelled:
		return st, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown gig status %q", s)
}

// Metrics are the self-reported numbers of a gig. Nil means not reported.
type Metrics struct {
	TicketsSold       *int64
	Attendance        *int64
	TicketPriceCents  *int64
	GrossRevenueCents *int64
}

func (m Metrics) IsEmpty() bool {
	return m.TicketsSold == nil && m.Attendance == nil && m.TicketPriceCents == nil && m.GrossRevenueCents == nil
}

func (m Metrics) Validate() error {
	fields := []struct {
		name string
		v    *int64
	}{
		{"tickets_sold", m.TicketsSold},
		{"attendance", m.Attendance},
		{"ticket_price_cents", m.TicketPriceCents},
		{"gross_revenue_cents", m.GrossRevenueCents},
	}
	for _, f := range fields {
		if f.v != nil && *f.v < 0 {
			return errors.Wrapf(ErrValidation, "%s must be >= 0", f.name)
		}
	}
	return nil
}

// Merge returns m with every field present in patch overwritten.
func (m Metrics) Merge(patch Metrics) Metrics {
	if patch.TicketsSold != nil {
		m.TicketsSold = patch.TicketsSold
	}
	if patch.Attendance != nil {
		m.Attendance = patch.Attendance
	}
	if patch.TicketPriceCents != nil {
		m.TicketPriceCents = patch.TicketPriceCents
	}
	if patch.GrossRevenueCents != nil {
		m.GrossRevenueCents = patch.GrossRevenueCents
	}
	return m
}

// Gig is a scheduled engagement between a matched artist and venue.
type Gig struct {
	ID              uuid.UUID
	ArtistProfileID uuid.UUID
	VenueProfileID  uuid.UUID
	Title           string
	// Date is a calendar date, kept at midnight UTC.
	Date   time.Time
	Status GigStatus
	Metrics
	ArtistConfirmed bool
	VenueConfirmed  bool
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DateOnly drops the time of day, keeping the calendar date as seen in t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewGig(createdBy uuid.UUID, pair Pair, title string, date time.Time, now time.Time) (Gig, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Gig{}, errors.Wrap(ErrValidation, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxGigTitleLength {
		return Gig{}, errors.Wrapf(ErrValidation, "title must be at most %d characters", MaxGigTitleLength)
	}
	if date.IsZero() {
		return Gig{}, errors.Wrap(ErrValidation, "date is required")
	}
	return Gig{
		ID:              uuid.New(),
		ArtistProfileID: pair.ArtistProfileID,
		VenueProfileID:  pair.VenueProfileID,
		Title:           title,
		Date:            DateOnly(date),
		Status:          GigUpcoming,
		CreatedByUserID: createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Verified is derived, never stored.
func (g Gig) Verified() bool {
	return g.ArtistConfirmed && g.VenueConfirmed
}

func (g Gig) Pair() Pair {
	return Pair{ArtistProfileID: g.ArtistProfileID, VenueProfileID: g.VenueProfileID}
}

// SideOf returns which party of the gig the actor is, or ErrForbidden.
func (g Gig) SideOf(a Actor) (Role, error) {
	if a.HasProfile() && a.Role.Valid() && a.ProfileID == g.Pair().Profile(a.Role) {
		return a.Role, nil
	}
	return "", errors.Wrap(ErrForbidden, "actor is not a party of this gig")
}

func (g Gig) checkMutable() error {
	if g.Status == GigCancelled {
		return errors.Wrap(ErrInvalidState, "gig is cancelled")
	}
	return nil
}

// ApplyMetrics merges patch and clears both confirmations.
func (g *Gig) ApplyMetrics(patch Metrics, now time.Time) error {
	if err := g.checkMutable(); err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	g.Metrics = g.Metrics.Merge(patch)
	g.ArtistConfirmed = false
	g.VenueConfirmed = false
	g.UpdatedAt = now
	return nil
}

// Confirm sets the flag of side. It reports false when the flag was already set.
func (g *Gig) Confirm(side Role, now time.Time) (bool, error) {
	if err := g.checkMutable(); err != nil {
		return false, err
	}
	flag := &g.VenueConfirmed
	if side == RoleArtist {
		flag = &g.ArtistConfirmed
	}
	if *flag {
		return false, nil
	}
	*flag = true
	g.UpdatedAt = now
	return true, nil
}

// CheckTransition validates a status change without applying it.
func (g Gig) CheckTransition(to GigStatus) error {
	if to != GigCompleted && to != GigCancelled {
		return errors.Wrapf(ErrValidation, "status must be %q or %q", GigCompleted, GigCancelled)
	}
	if g.Status != GigUpcoming {
		return errors.Wrapf(ErrInvalidState, "cannot move a %s gig to %s", g.Status, to)
	}
	return nil
}

func (g *Gig) TransitionTo(to GigStatus, now time.Time) error {
	if err := g.CheckTransition(to); err != nil {
		return err
	}
	g.Status = to
	g.UpdatedAt = now
	return nil
}
