package api

import (
	"github.com/starford/passport/internal/history"
	"github.com/starford/passport/internal/index"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/visitlog"
	"github.com/starford/passport/internal/visitservice"
)

// Visit is the visit response and request body (aliased from the domain layer).
type Visit = models.Visit

// VisitListResponse is the response of GET /visits (aliased from the domain layer).
type VisitListResponse = visitservice.ListResult

// CountriesResponse is the response of GET /countries (aliased from the domain layer).
type CountriesResponse = visitservice.CountriesResult

// StatsResponse is the response of GET /stats (aliased from the domain layer).
type StatsResponse = visitservice.Stats

// MapResponse is the response of GET /map (aliased from the domain layer).
type MapResponse = visitservice.MapView

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// HistoryResponse wraps the data file history.
type HistoryResponse struct {
	Commits []history.Commit `json:"commits" validate:"required"`
}

// ReloadResponse reports the outcome of POST /reload.
type ReloadResponse struct {
	Changed  bool                `json:"changed"`
	Visits   int                 `json:"visits" example:"12"`
	Rejected []visitlog.RowError `json:"rejected"`
	Checksum string              `json:"checksum"`
}
