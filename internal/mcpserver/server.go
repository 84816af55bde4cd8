// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Passport visit tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/visitlog"
	"github.com/starford/passport/internal/visitservice"
)

const (
	formatURI = "passport://csv-format"
	schemaURI = "passport://visit-schema"
)

// Server wraps the MCP server with Passport tools.
type Server struct {
	mcp *server.MCPServer
	svc *visitservice.Service
}

// New creates a new MCP server with all Passport tools registered.
// svc must already hold a snapshot.
func New(svc *visitservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Passport",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_visits", withFilterArgs(
		mcp.WithDescription("List logged restaurant visits, optionally filtered. All filters are combined with AND."),
	)...), s.listVisits)

	s.mcp.AddTool(mcp.NewTool("add_visit",
		mcp.WithDescription("Append a restaurant visit to the log. "+
			"Fields MUST follow the visit log format contract: read it first via "+
			"the get_format_contract tool or the "+formatURI+" resource."),
		mcp.WithString("country", mcp.Required(), mcp.Description("Country name, e.g. Ghana")),
		mcp.WithString("iso3", mcp.Required(), mcp.Description("ISO 3166-1 alpha-3 code of an African country")),
		mcp.WithString("city", mcp.Description("City")),
		mcp.WithString("restaurant_name", mcp.Required(), mcp.Description("Restaurant name")),
		mcp.WithNumber("rating", mcp.Required(), mcp.Description("Rating from 0 to 5")),
		mcp.WithString("visit_date", mcp.Required(), mcp.Description("Visit date, YYYY-MM-DD")),
		mcp.WithString("notes", mcp.Description("Free text notes")),
		mcp.WithNumber("latitude", mcp.Description("Latitude in decimal degrees")),
		mcp.WithNumber("longitude", mcp.Description("Longitude in decimal degrees")),
	), s.addVisit)

	s.mcp.AddTool(mcp.NewTool("countries_represented",
		mcp.WithDescription("ISO3 codes of the countries with at least one logged visit."),
	), s.countriesRepresented)

	s.mcp.AddTool(mcp.NewTool("export_csv", withFilterArgs(
		mcp.WithDescription("Export visits as CSV in the canonical column order."),
	)...), s.exportCSV)

	s.mcp.AddTool(mcp.NewTool("search_visits",
		mcp.WithDescription("Text search across restaurant names, cities, countries and notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchVisits)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the visit log CSV format contract. "+
			"Call this before adding visits to ensure correct values."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Visit Log Format Contract",
			mcp.WithResourceDescription("Columns and rules of the visit log CSV file."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(schemaURI, "Visit JSON Schema",
			mcp.WithResourceDescription("JSON Schema of a visit as returned by list_visits."),
			mcp.WithMIMEType("application/schema+json"),
		),
		s.readSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// withFilterArgs appends the optional filter arguments to opts.
func withFilterArgs(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts,
		mcp.WithString("country", mcp.Description("Comma separated ISO2 or ISO3 codes, e.g. GH,SEN")),
		mcp.WithNumber("min_rating", mcp.Description("Lowest rating, inclusive")),
		mcp.WithNumber("max_rating", mcp.Description("Highest rating, inclusive")),
		mcp.WithString("from", mcp.Description("First visit date, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("Last visit date, YYYY-MM-DD")),
	)
}

// queryFromArgs builds a filter from the optional filter arguments.
func queryFromArgs(req mcp.CallToolRequest) (visitlog.Query, error) {
	var q visitlog.Query
	args := req.GetArguments()

	for _, code := range strings.Split(req.GetString("country", ""), ",") {
		if code = strings.TrimSpace(code); code != "" {
			q.Countries = append(q.Countries, code)
		}
	}

	_, hasMin := args["min_rating"]
	_, hasMax := args["max_rating"]
	if hasMin || hasMax {
		q.Rating = &visitlog.Range{
			Min: req.GetFloat("min_rating", models.MinRating),
			Max: req.GetFloat("max_rating", models.MaxRating),
		}
	}

	var dates visitlog.DateRange
	for _, p := range []struct {
		key string
		dst *models.Date
	}{{"from", &dates.From}, {"to", &dates.To}} {
		s := req.GetString(p.key, "")
		if s == "" {
			continue
		}
		d, err := models.ParseDate(s)
		if err != nil {
			return q, fmt.Errorf("%s: %w", p.key, err)
		}
		*p.dst = d
	}
	if !dates.From.IsZero() || !dates.To.IsZero() {
		q.Dates = &dates
	}
	return q, nil
}

func toolError(err error) *mcp.CallToolResult {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid %s: %s", ve.Field, ve.Reason))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listVisits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := queryFromArgs(req)
	if err != nil {
		return toolError(err), nil
	}
	res, err := s.svc.List(ctx, q)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) addVisit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var v models.Visit
	var err error
	if v.Country, err = req.RequireString("country"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v.ISO3, err = req.RequireString("iso3"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v.RestaurantName, err = req.RequireString("restaurant_name"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v.Rating, err = req.RequireFloat("rating"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("visit_date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v.VisitDate, err = models.ParseDate(date); err != nil {
		return toolError(&apperr.ValidationError{Field: models.ColVisitDate, Reason: err.Error()}), nil
	}
	v.City = req.GetString("city", "")
	v.Notes = req.GetString("notes", "")
	v.Latitude = req.GetFloat("latitude", 0)
	v.Longitude = req.GetFloat("longitude", 0)

	stored, err := s.svc.Append(ctx, v)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(stored)
}

func (s *Server) countriesRepresented(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Countries(ctx).Represented)
}

func (s *Server) exportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := queryFromArgs(req)
	if err != nil {
		return toolError(err), nil
	}
	var buf bytes.Buffer
	if err := s.svc.Export(ctx, &buf, q); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) searchVisits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no visits found"), nil
	}
	return jsonResult(results)
}

func (s *Server) getFormatContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CSVFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     CSVFormatContract,
		},
	}, nil
}

func (s *Server) readSchemaResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	schema, err := VisitSchema()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "application/schema+json",
			Text:     string(schema),
		},
	}, nil
}

// VisitSchema returns the JSON Schema of models.Visit.
func VisitSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&models.Visit{})
	schema.Title = "Visit"
	schema.Description = "One logged restaurant tasting."
	return json.MarshalIndent(schema, "", "  ")
}
