package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/bookmarks"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/gigs"
	"github.com/robertarktes/gigconnect/internal/matching"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/robertarktes/gigconnect/internal/stats"
)

// RelationshipLog reads the recorded match and gig events of a profile.
type RelationshipLog interface {
	ListForProfile(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.Event, error)
}

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

const (
	defaultExportLimit    = 10000
	exportTruncatedHeader = "X-Export-Truncated"
)

type Handlers struct {
	matches     *matching.Service
	gigs        *gigs.Service
	stats       *stats.Service
	bookmarks   *bookmarks.Service
	logs        RelationshipLog
	checks      map[string]Checker
	logger      observability.Logger
	exportLimit int
}

func NewHandlers(
	matches *matching.Service,
	gigSvc *gigs.Service,
	statsSvc *stats.Service,
	bookmarkSvc *bookmarks.Service,
	logs RelationshipLog,
	checks map[string]Checker,
	logger observability.Logger,
) *Handlers {
	return &Handlers{
		matches:     matches,
		gigs:        gigSvc,
		stats:       statsSvc,
		bookmarks:   bookmarkSvc,
		logs:        logs,
		checks:      checks,
		logger:      logger,
		exportLimit: defaultExportLimit,
	}
}

// actor is only called behind RequireActor.
func actor(r *http.Request) domain.Actor {
	a, _ := actorFrom(r.Context())
	return a
}

func idParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.Wrapf(domain.ErrValidation, "%s is not a uuid", name)
	}
	return id, nil
}

func (h *Handlers) RequestMatch(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	role, id := req.parse()
	res, err := h.matches.RequestMatch(r.Context(), actor(r), role, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	role, id := req.parse()
	res, err := h.matches.AcceptMatch(r.Context(), actor(r), role, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) CancelMatch(w http.ResponseWriter, r *http.Request) {
	role, id, err := targetFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.matches.CancelOrUnmatch(r.Context(), actor(r), role, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) MatchStatus(w http.ResponseWriter, r *http.Request) {
	role, id, err := targetFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.matches.Status(r.Context(), actor(r), role, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) counterparts(list func(context.Context, domain.Actor) ([]matching.Counterpart, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := list(r.Context(), actor(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *Handlers) CreateGig(w http.ResponseWriter, r *http.Request) {
	var req createGigRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		h.writeError(w, r, errors.Wrap(domain.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	g, err := h.gigs.Create(r.Context(), actor(r), gigs.CreateInput{
		ArtistProfileID: uuid.MustParse(req.ArtistProfileID),
		VenueProfileID:  uuid.MustParse(req.VenueProfileID),
		Title:           req.Title,
		Date:            date,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGigResponse(*g))
}

func (h *Handlers) ListGigs(w http.ResponseWriter, r *http.Request) {
	var status domain.GigStatus
	if s := r.URL.Query().Get("status"); s != "" {
		var err error
		if status, err = domain.ParseGigStatus(s); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	list, err := h.gigs.ListForActor(r.Context(), actor(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]gigResponse, 0, len(list))
	for _, g := range list {
		out = append(out, newGigResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetGig(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.gigs.Get(r.Context(), actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGigResponse(*g))
}

func (h *Handlers) SubmitMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req metricsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.gigs.SubmitMetrics(r.Context(), actor(r), id, req.metrics())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGigResponse(*g))
}

func (h *Handlers) ConfirmGig(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.gigs.Confirm(r.Context(), actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGigResponse(*g))
}

func (h *Handlers) UpdateGigStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := domain.ParseGigStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	g, err := h.gigs.UpdateStatus(r.Context(), actor(r), id, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGigResponse(*g))
}

func (h *Handlers) ArtistStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.stats.ArtistStats(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := stats.ParseSortKey(q.Get("sort"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var limit int
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			h.writeError(w, r, errors.Wrap(domain.ErrValidation, "limit must be a positive integer"))
			return
		}
	}
	lb, err := h.stats.Leaderboard(r.Context(), stats.Query{
		Filter: stats.Filter{City: q.Get("city"), State: q.Get("state")},
		Sort:   sort,
		Limit:  limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handlers) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.stats.Cities(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (h *Handlers) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.bookmarks.Add(r.Context(), actor(r), domain.Role(req.EntityType), uuid.MustParse(req.EntityID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBookmarkResponse(b))
}

func (h *Handlers) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	list, err := h.bookmarks.List(r.Context(), actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]bookmarkResponse, 0, len(list))
	for _, b := range list {
		out = append(out, newBookmarkResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.bookmarks.Remove(r.Context(), actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var exportHeader = []string{
	"occurred_at", "event_type", "aggregate_type", "aggregate_id",
	"actor_user_id", "actor_profile_id", "target_profile_id", "data",
}

// ExportRelationshipLog streams the caller's relationship log as CSV, oldest first. A log longer
// than the export limit is cut and the response carries X-Export-Truncated: true.
func (h *Handlers) ExportRelationshipLog(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	if !a.HasProfile() {
		h.writeError(w, r, errors.Wrap(domain.ErrForbidden, "actor has no profile"))
		return
	}
	events, err := h.logs.ListForProfile(r.Context(), a.ProfileID, h.exportLimit+1)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(events) > h.exportLimit {
		events = events[:h.exportLimit]
		w.Header().Set(exportTruncatedHeader, "true")
		observability.LoggerFromContext(r.Context(), h.logger).WithFields(map[string]interface{}{
			"profile_id": a.ProfileID,
			"limit":      h.exportLimit,
		}).Warn("relationship log export truncated")
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="relationship-log.csv"`)
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, ev := range events {
		data := ""
		if len(ev.Data) > 0 {
			b, _ := json.Marshal(ev.Data)
			data = string(b)
		}
		_ = cw.Write([]string{
			ev.OccurredAt.UTC().Format(time.RFC3339),
			string(ev.Type),
			ev.AggregateType,
			ev.AggregateID,
			ev.ActorUserID.String(),
			ev.ActorProfileID.String(),
			ev.TargetProfileID.String(),
			data,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Warn("csv export interrupted")
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz pings every dependency and reports the failing ones.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		observability.LoggerFromContext(r.Context(), h.logger).WithField("failed", failed).Warn("not ready")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
