// Package stats derives read-only rollups from completed gig records.
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/shopspring/decimal"
)

type GigHistoryItem struct {
	GigID          uuid.UUID `json:"gig_id"`
	VenueProfileID uuid.UUID `json:"venue_profile_id"`
	VenueName      string    `json:"venue_name"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	Attendance     *int64    `json:"attendance"`
	TicketsSold    *int64    `json:"tickets_sold"`
	Verified       bool      `json:"verified"`
}

type ArtistStats struct {
	ArtistProfileID  uuid.UUID        `json:"artist_profile_id"`
	ArtistName       string           `json:"artist_name"`
	TotalGigs        int              `json:"total_gigs"`
	VerifiedGigs     int              `json:"verified_gigs"`
	AvgAttendance    *float64         `json:"avg_attendance"`
	AvgTicketsSold   *float64         `json:"avg_tickets_sold"`
	TotalTicketsSold int64            `json:"total_tickets_sold"`
	UniqueVenues     int              `json:"unique_venues_count"`
	GigHistory       []GigHistoryItem `json:"gig_history"`
}

// mean tracks the sum and count of the non-null values of one metric.
type mean struct {
	sum int64
	n   int64
}

func (m *mean) add(v *int64) {
	if v != nil {
		m.sum += *v
		m.n++
	}
}

func (m mean) total() *int64 {
	if m.n == 0 {
		return nil
	}
	s := m.sum
	return &s
}

// avg is rounded to one decimal, nil when no value was reported.
func (m mean) avg() *float64 {
	if m.n == 0 {
		return nil
	}
	f, _ := decimal.NewFromInt(m.sum).Div(decimal.NewFromInt(m.n)).Round(1).Float64()
	return &f
}

func completed(g domain.Gig) bool {
	return g.Status == domain.GigCompleted
}

// ForArtist computes the stats of one artist. Gigs of other artists and gigs that are not
// completed are ignored. venues supplies display names for the history.
func ForArtist(artistID uuid.UUID, gigs []domain.Gig, venues map[uuid.UUID]domain.Profile) ArtistStats {
	st := ArtistStats{ArtistProfileID: artistID, GigHistory: []GigHistoryItem{}}
	var attendance, tickets mean
	seen := make(map[uuid.UUID]struct{})
	for _, g := range gigs {
		if g.ArtistProfileID != artistID || !completed(g) {
			continue
		}
		st.TotalGigs++
		if g.Verified() {
			st.VerifiedGigs++
		}
		attendance.add(g.Attendance)
		tickets.add(g.TicketsSold)
		seen[g.VenueProfileID] = struct{}{}
		st.GigHistory = append(st.GigHistory, GigHistoryItem{
			GigID:          g.ID,
			VenueProfileID: g.VenueProfileID,
			VenueName:      venues[g.VenueProfileID].Name,
			Title:          g.Title,
			Date:           g.Date,
			Attendance:     g.Attendance,
			TicketsSold:    g.TicketsSold,
			Verified:       g.Verified(),
		})
	}
	st.AvgAttendance = attendance.avg()
	st.AvgTicketsSold = tickets.avg()
	st.TotalTicketsSold = tickets.sum
	st.UniqueVenues = len(seen)
	sort.Slice(st.GigHistory, func(i, j int) bool {
		a, b := st.GigHistory[i], st.GigHistory[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.GigID.String() < b.GigID.String()
	})
	return st
}

type VenueEntry struct {
	VenueProfileID         uuid.UUID `json:"venue_profile_id"`
	VenueName              string    `json:"venue_name"`
	City                   string    `json:"city"`
	State                  string    `json:"state"`
	TotalGigs              int       `json:"total_gigs"`
	VerifiedGigs           int       `json:"verified_gigs"`
	TotalAttendance        *int64    `json:"total_attendance"`
	AvgAttendance          *float64  `json:"avg_attendance"`
	TotalTicketsSold       *int64    `json:"total_tickets_sold"`
	TotalGrossRevenueCents *int64    `json:"total_gross_revenue_cents"`
	UniqueArtists          int       `json:"unique_artists"`
}

type ArtistEntry struct {
	ArtistProfileID  uuid.UUID `json:"artist_profile_id"`
	ArtistName       string    `json:"artist_name"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	TotalGigs        int       `json:"total_gigs"`
	VerifiedGigs     int       `json:"verified_gigs"`
	TotalAttendance  *int64    `json:"total_attendance"`
	AvgAttendance    *float64  `json:"avg_attendance"`
	TotalTicketsSold *int64    `json:"total_tickets_sold"`
	UniqueVenues     int       `json:"unique_venues"`
}

type Leaderboard struct {
	City    string        `json:"city,omitempty"`
	State   string        `json:"state,omitempty"`
	Venues  []VenueEntry  `json:"venues"`
	Artists []ArtistEntry `json:"artists"`
}

// Filter scopes a leaderboard to profiles located in a city and/or state. Matching ignores case.
type Filter struct {
	City  string
	State string
}

func (f Filter) accepts(p domain.Profile) bool {
	if f.City != "" && !strings.EqualFold(strings.TrimSpace(p.City), strings.TrimSpace(f.City)) {
		return false
	}
	if f.State != "" && !strings.EqualFold(strings.TrimSpace(p.State), strings.TrimSpace(f.State)) {
		return false
	}
	return true
}

type rollup struct {
	gigs, verified      int
	attendance, tickets mean
	revenue             mean
	partners            map[uuid.UUID]struct{}
}

func (r *rollup) add(g domain.Gig, partner uuid.UUID) {
	r.gigs++
	if g.Verified() {
		r.verified++
	}
	r.attendance.add(g.Attendance)
	r.tickets.add(g.TicketsSold)
	r.revenue.add(g.GrossRevenueCents)
	r.partners[partner] = struct{}{}
}

// Rollup groups completed gigs per venue and per artist. The filter applies to the profile being
// ranked; gigs whose ranked profile is missing from the directory are left out. Entries come back
// in profile id order.
func Rollup(gigs []domain.Gig, venues, artists map[uuid.UUID]domain.Profile, f Filter) Leaderboard {
	byVenue := make(map[uuid.UUID]*rollup)
	byArtist := make(map[uuid.UUID]*rollup)
	get := func(m map[uuid.UUID]*rollup, id uuid.UUID) *rollup {
		r, ok := m[id]
		if !ok {
			r = &rollup{partners: make(map[uuid.UUID]struct{})}
			m[id] = r
		}
		return r
	}
	for _, g := range gigs {
		if !completed(g) {
			continue
		}
		if p, ok := venues[g.VenueProfileID]; ok && f.accepts(p) {
			get(byVenue, g.VenueProfileID).add(g, g.ArtistProfileID)
		}
		if p, ok := artists[g.ArtistProfileID]; ok && f.accepts(p) {
			get(byArtist, g.ArtistProfileID).add(g, g.VenueProfileID)
		}
	}

	lb := Leaderboard{City: f.City, State: f.State, Venues: []VenueEntry{}, Artists: []ArtistEntry{}}
	for id, r := range byVenue {
		p := venues[id]
		lb.Venues = append(lb.Venues, VenueEntry{
			VenueProfileID:         id,
			VenueName:              p.Name,
			City:                   p.City,
			State:                  p.State,
			TotalGigs:              r.gigs,
			VerifiedGigs:           r.verified,
			TotalAttendance:        r.attendance.total(),
			AvgAttendance:          r.attendance.avg(),
			TotalTicketsSold:       r.tickets.total(),
			TotalGrossRevenueCents: r.revenue.total(),
			UniqueArtists:          len(r.partners),
		})
	}
	for id, r := range byArtist {
		p := artists[id]
		lb.Artists = append(lb.Artists, ArtistEntry{
			ArtistProfileID:  id,
			ArtistName:       p.Name,
			City:             p.City,
			State:            p.State,
			TotalGigs:        r.gigs,
			VerifiedGigs:     r.verified,
			TotalAttendance:  r.attendance.total(),
			AvgAttendance:    r.attendance.avg(),
			TotalTicketsSold: r.tickets.total(),
			UniqueVenues:     len(r.partners),
		})
	}
	sort.Slice(lb.Venues, func(i, j int) bool { return lb.Venues[i].VenueProfileID.String() < lb.Venues[j].VenueProfileID.String() })
	sort.Slice(lb.Artists, func(i, j int) bool { return lb.Artists[i].ArtistProfileID.String() < lb.Artists[j].ArtistProfileID.String() })
	return lb
}

type SortKey string

const (
	SortGigs       SortKey = "gigs"
	SortAttendance SortKey = "attendance"
	SortTickets    SortKey = "tickets"
	SortRevenue    SortKey = "revenue"
)

// ParseSortKey defaults to SortGigs for an empty key.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortGigs, nil
	case SortGigs, SortAttendance, SortTickets, SortRevenue:
		return k, nil
	}
	return "", errors.Wrapf(domain.ErrValidation, "unknown sort key %q", s)
}

func orZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// SortVenues orders entries by key descending, ties by profile id ascending.
func SortVenues(entries []VenueEntry, key SortKey) {
	value := func(e VenueEntry) int64 {
		switch key {
		case SortAttendance:
			return orZero(e.TotalAttendance)
		case SortTickets:
			return orZero(e.TotalTicketsSold)
		case SortRevenue:
			return orZero(e.TotalGrossRevenueCents)
		}
		return int64(e.TotalGigs)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := value(entries[i]), value(entries[j])
		if a != b {
			return a > b
		}
		return entries[i].VenueProfileID.String() < entries[j].VenueProfileID.String()
	})
}

// SortArtists orders entries by key descending, ties by profile id ascending.
// Artists carry no revenue, so SortRevenue ranks them by gig count.
func SortArtists(entries []ArtistEntry, key SortKey) {
	value := func(e ArtistEntry) int64 {
		switch key {
		case SortAttendance:
			return orZero(e.TotalAttendance)
		case SortTickets:
			return orZero(e.TotalTicketsSold)
		}
		return int64(e.TotalGigs)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := value(entries[i]), value(entries[j])
		if a != b {
			return a > b
		}
		return entries[i].ArtistProfileID.String() < entries[j].ArtistProfileID.String()
	})
}

// Cities lists the venue cities with at least one completed gig, busiest first.
func Cities(gigs []domain.Gig, venues map[uuid.UUID]domain.Profile) []string {
	counts := make(map[string]int)
	for _, g := range gigs {
		if !completed(g) {
			continue
		}
		if city := strings.TrimSpace(venues[g.VenueProfileID].City); city != "" {
			counts[city]++
		}
	}
	out := make([]string, 0, len(counts))
	for c := range counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
