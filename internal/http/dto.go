package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

const dateLayout = "2006-01-02"

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(domain.ErrValidation, "malformed body: %v", err)
	}
	return check(v)
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(domain.ErrValidation, err.Error())
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" failed "+fe.Tag())
	}
	return errors.Wrap(domain.ErrValidation, strings.Join(fields, "; "))
}

type targetRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=artist venue"`
	TargetID   string `json:"target_id" validate:"required,uuid"`
}

func (t targetRequest) parse() (domain.Role, uuid.UUID) {
	return domain.Role(t.TargetType), uuid.MustParse(t.TargetID)
}

func targetFromQuery(r *http.Request) (domain.Role, uuid.UUID, error) {
	req := targetRequest{
		TargetType: r.URL.Query().Get("target_type"),
		TargetID:   r.URL.Query().Get("target_id"),
	}
	if err := check(req); err != nil {
		return "", uuid.Nil, err
	}
	role, id := req.parse()
	return role, id, nil
}

type createGigRequest struct {
	ArtistProfileID string `json:"artist_profile_id" validate:"required,uuid"`
	VenueProfileID  string `json:"venue_profile_id" validate:"required,uuid"`
	Title           string `json:"title" validate:"required,max=200"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
}

type metricsRequest struct {
	TicketsSold       *int64 `json:"tickets_sold" validate:"omitempty,min=0"`
	Attendance        *int64 `json:"attendance" validate:"omitempty,min=0"`
	TicketPriceCents  *int64 `json:"ticket_price_cents" validate:"omitempty,min=0"`
	GrossRevenueCents *int64 `json:"gross_revenue_cents" validate:"omitempty,min=0"`
}

func (m metricsRequest) metrics() domain.Metrics {
	return domain.Metrics{
		TicketsSold:       m.TicketsSold,
		Attendance:        m.Attendance,
		TicketPriceCents:  m.TicketPriceCents,
		GrossRevenueCents: m.GrossRevenueCents,
	}
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bookmarkRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=artist venue"`
	EntityID   string `json:"entity_id" validate:"required,uuid"`
}

type gigResponse struct {
	ID                uuid.UUID        `json:"id"`
	ArtistProfileID   uuid.UUID        `json:"artist_profile_id"`
	VenueProfileID    uuid.UUID        `json:"venue_profile_id"`
	Title             string           `json:"title"`
	Date              string           `json:"date"`
	Status            domain.GigStatus `json:"status"`
	TicketsSold       *int64           `json:"tickets_sold"`
	Attendance        *int64           `json:"attendance"`
	TicketPriceCents  *int64           `json:"ticket_price_cents"`
	GrossRevenueCents *int64           `json:"gross_revenue_cents"`
	ArtistConfirmed   bool             `json:"artist_confirmed"`
	VenueConfirmed    bool             `json:"venue_confirmed"`
	Verified          bool             `json:"verified"`
	CreatedByUserID   uuid.UUID        `json:"created_by_user_id"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func newGigResponse(g domain.Gig) gigResponse {
	return gigResponse{
		ID:                g.ID,
		ArtistProfileID:   g.ArtistProfileID,
		VenueProfileID:    g.VenueProfileID,
		Title:             g.Title,
		Date:              g.Date.Format(dateLayout),
		Status:            g.Status,
		TicketsSold:       g.TicketsSold,
		Attendance:        g.Attendance,
		TicketPriceCents:  g.TicketPriceCents,
		GrossRevenueCents: g.GrossRevenueCents,
		ArtistConfirmed:   g.ArtistConfirmed,
		VenueConfirmed:    g.VenueConfirmed,
		Verified:          g.Verified(),
		CreatedByUserID:   g.CreatedByUserID,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
}

type bookmarkResponse struct {
	ID         uuid.UUID   `json:"id"`
	EntityType domain.Role `json:"entity_type"`
	EntityID   uuid.UUID   `json:"entity_id"`
	CreatedAt  time.Time   `json:"created_at"`
}

func newBookmarkResponse(b domain.Bookmark) bookmarkResponse {
	return bookmarkResponse{ID: b.ID, EntityType: b.EntityType, EntityID: b.EntityID, CreatedAt: b.CreatedAt}
}
