package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/visitlog"
	"github.com/starford/passport/internal/visitservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *visitservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *visitservice.Service) *Handler {
	return &Handler{svc: svc}
}

// visitRow extracts the 1-based row from the URL.
func visitRow(r *http.Request) (int, error) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || row < 1 {
		return 0, &apperr.ValidationError{Field: "row", Reason: "must be a positive integer"}
	}
	return row, nil
}

// ifMatch returns the If-Match header without the quotes of the ETag form.
func ifMatch(r *http.Request) string {
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

func setETag(w http.ResponseWriter, checksum string) {
	if checksum != "" {
		w.Header().Set("ETag", `"`+checksum+`"`)
	}
}

// parseQuery reads the filter parameters shared by /visits, /export and /map.
func parseQuery(r *http.Request) (visitlog.Query, error) {
	var q visitlog.Query
	v := r.URL.Query()

	if c := v.Get("country"); c != "" {
		for _, code := range strings.Split(c, ",") {
			if code = strings.TrimSpace(code); code != "" {
				q.Countries = append(q.Countries, code)
			}
		}
	}

	minR, hasMin, err := floatParam(v.Get("min_rating"), "min_rating")
	if err != nil {
		return q, err
	}
	maxR, hasMax, err := floatParam(v.Get("max_rating"), "max_rating")
	if err != nil {
		return q, err
	}
	if hasMin || hasMax {
		rg := visitlog.Range{Min: models.MinRating, Max: models.MaxRating}
		if hasMin {
			rg.Min = minR
		}
		if hasMax {
			rg.Max = maxR
		}
		q.Rating = &rg
	}

	from, err := dateParam(v.Get("from"), "from")
	if err != nil {
		return q, err
	}
	to, err := dateParam(v.Get("to"), "to")
	if err != nil {
		return q, err
	}
	if !from.IsZero() || !to.IsZero() {
		q.Dates = &visitlog.DateRange{From: from, To: to}
	}
	return q, nil
}

func floatParam(s, field string) (float64, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, &apperr.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return f, true, nil
}

func dateParam(s, field string) (models.Date, error) {
	if s == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return d, &apperr.ValidationError{Field: field, Reason: err.Error()}
	}
	return d, nil
}

func decodeVisit(w http.ResponseWriter, r *http.Request) (models.Visit, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var v models.Visit
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return v, false
	}
	return v, true
}

// ListVisits handles GET /api/visits.
//
//	@Summary		List visits, optionally filtered
//	@Tags			visits
//	@Produce		json
//	@Param			country		query		string	false	"Comma separated ISO2 or ISO3 codes"
//	@Param			min_rating	query		number	false	"Lowest rating, inclusive"
//	@Param			max_rating	query		number	false	"Highest rating, inclusive"
//	@Param			from		query		string	false	"First visit date, YYYY-MM-DD"
//	@Param			to			query		string	false	"Last visit date, YYYY-MM-DD"
//	@Success		200			{object}	VisitListResponse
//	@Failure		400			{object}	errResponse
//	@Router			/visits [get]
func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, "list visits", err)
		return
	}
	res, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, "list visits", err)
		return
	}
	setETag(w, res.Checksum)
	writeJSON(w, http.StatusOK, res)
}

// GetVisit handles GET /api/visits/{row}.
//
//	@Summary		Get a single visit by row
//	@Tags			visits
//	@Produce		json
//	@Param			row	path		int	true	"1-based data row"
//	@Success		200	{object}	Visit
//	@Failure		404	{object}	errResponse
//	@Router			/visits/{row} [get]
func (h *Handler) GetVisit(w http.ResponseWriter, r *http.Request) {
	row, err := visitRow(r)
	if err != nil {
		writeError(w, "get visit", err)
		return
	}
	v, err := h.svc.Get(r.Context(), row)
	if err != nil {
		writeError(w, "get visit", err)
		return
	}
	setETag(w, h.svc.Checksum())
	writeJSON(w, http.StatusOK, v)
}

// CreateVisit handles POST /api/visits.
//
//	@Summary		Append a visit to the log
//	@Tags			visits
//	@Accept			json
//	@Produce		json
//	@Param			body	body		Visit	true	"Visit to add"
//	@Success		201		{object}	Visit
//	@Failure		400		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/visits [post]
func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	v, ok := decodeVisit(w, r)
	if !ok {
		return
	}
	stored, err := h.svc.Append(r.Context(), v)
	if err != nil {
		writeError(w, "create visit", err)
		return
	}
	setETag(w, h.svc.Checksum())
	writeJSON(w, http.StatusCreated, stored)
}

// UpdateVisit handles PUT /api/visits/{row}.
//
//	@Summary		Replace a visit with optimistic concurrency
//	@Tags			visits
//	@Accept			json
//	@Produce		json
//	@Param			row			path		int		true	"1-based data row"
//	@Param			If-Match	header		string	false	"SHA-256 checksum of the log"
//	@Param			body		body		Visit	true	"Updated visit"
//	@Success		200			{object}	Visit
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/visits/{row} [put]
func (h *Handler) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	row, err := visitRow(r)
	if err != nil {
		writeError(w, "update visit", err)
		return
	}
	v, ok := decodeVisit(w, r)
	if !ok {
		return
	}
	stored, err := h.svc.Update(r.Context(), row, v, ifMatch(r))
	if err != nil {
		writeError(w, "update visit", err)
		return
	}
	setETag(w, h.svc.Checksum())
	writeJSON(w, http.StatusOK, stored)
}

// DeleteVisit handles DELETE /api/visits/{row}.
//
//	@Summary		Delete a visit
//	@Tags			visits
//	@Param			row			path	int		true	"1-based data row"
//	@Param			If-Match	header	string	false	"SHA-256 checksum of the log"
//	@Success		204			"Visit deleted"
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/visits/{row} [delete]
func (h *Handler) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	row, err := visitRow(r)
	if err != nil {
		writeError(w, "delete visit", err)
		return
	}
	if err := h.svc.Delete(r.Context(), row, ifMatch(r)); err != nil {
		writeError(w, "delete visit", err)
		return
	}
	setETag(w, h.svc.Checksum())
	w.WriteHeader(http.StatusNoContent)
}

// Countries handles GET /api/countries.
//
//	@Summary		African countries annotated with visits
//	@Tags			countries
//	@Produce		json
//	@Success		200	{object}	CountriesResponse
//	@Router			/countries [get]
func (h *Handler) Countries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Countries(r.Context()))
}

// Stats handles GET /api/stats.
//
//	@Summary		KPIs and per-country breakdown
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Export handles GET /api/export.
//
//	@Summary		Download visits as CSV
//	@Tags			visits
//	@Produce		text/csv
//	@Param			country		query	string	false	"Comma separated ISO2 or ISO3 codes"
//	@Param			min_rating	query	number	false	"Lowest rating, inclusive"
//	@Param			max_rating	query	number	false	"Highest rating, inclusive"
//	@Param			from		query	string	false	"First visit date, YYYY-MM-DD"
//	@Param			to			query	string	false	"Last visit date, YYYY-MM-DD"
//	@Success		200			{file}	file
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf, q); err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", visitlog.ExportFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Search handles GET /api/search.
//
//	@Summary		Text search across restaurants, cities, countries and notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Map handles GET /api/map.
//
//	@Summary		Visit points, country choropleth and viewport
//	@Tags			map
//	@Produce		json
//	@Success		200	{object}	MapResponse
//	@Router			/map [get]
func (h *Handler) Map(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, "map", err)
		return
	}
	m, err := h.svc.Map(r.Context(), q)
	if err != nil {
		writeError(w, "map", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Locate handles GET /api/map/locate.
//
//	@Summary		Country containing a clicked point
//	@Tags			map
//	@Produce		json
//	@Param			lat	query		number	true	"Latitude"
//	@Param			lon	query		number	true	"Longitude"
//	@Success		200	{object}	mapview.Region
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Router			/map/locate [get]
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	lat, okLat, err := floatParam(r.URL.Query().Get("lat"), "lat")
	if err != nil || !okLat {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "query parameter 'lat' is required", Field: "lat"})
		return
	}
	lon, okLon, err := floatParam(r.URL.Query().Get("lon"), "lon")
	if err != nil || !okLon {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "query parameter 'lon' is required", Field: "lon"})
		return
	}
	region, err := h.svc.Locate(r.Context(), lat, lon)
	if err != nil {
		writeError(w, "locate", err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

// History handles GET /api/history.
//
//	@Summary		Commits that touched the data file
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Max commits"
//	@Success		200		{object}	HistoryResponse
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	commits, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Commits: commits})
}

// Reload handles POST /api/reload.
//
//	@Summary		Re-read the data file
//	@Tags			visits
//	@Produce		json
//	@Success		200	{object}	ReloadResponse
//	@Failure		422	{object}	errResponse
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.Reload(r.Context())
	if err != nil {
		writeError(w, "reload", err)
		return
	}
	snap := h.svc.Snapshot()
	rejected := snap.Rejected
	if rejected == nil {
		rejected = []visitlog.RowError{}
	}
	setETag(w, snap.Checksum)
	writeJSON(w, http.StatusOK, ReloadResponse{
		Changed:  changed,
		Visits:   len(snap.Visits),
		Rejected: rejected,
		Checksum: snap.Checksum,
	})
}
