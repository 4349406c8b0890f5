package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/feishu-media-bridge/internal/api"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/repo"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// BotAPI is the part of the admin API the tools read
type BotAPI interface {
	Status(ctx context.Context) (*api.Status, error)
	Jobs(ctx context.Context) ([]domain.JobSnapshot, error)
	AllowList(ctx context.Context) (*api.AllowList, error)
}

// MediaMCPServer exposes media search and bot status as MCP tools
type MediaMCPServer struct {
	server *mcp.Server
	search repo.SearchRepo
	bot    BotAPI
	log    *slog.Logger
}

// NewServer creates the MCP server. bot may be nil when no bot is running;
// the status tools then report an error.
func NewServer(search repo.SearchRepo, bot BotAPI, version string) *MediaMCPServer {
	s := &MediaMCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "feishu-media-tools",
			Version: version,
		}, nil),
		search: search,
		bot:    bot,
		log:    logger.Component("mcp"),
	}
	s.registerTools()
	return s
}

func (s *MediaMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "media_search",
		Description: "Search YouTube for songs or videos. Returns titles, URLs and durations in provider order.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "bot_status",
		Description: "Get the media bot status: access mode, admin, allow-list size and running jobs.",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "bot_jobs",
		Description: "List the media jobs currently running, one per chat.",
	}, s.handleJobs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "bot_allowlist",
		Description: "Show the access mode and the identities allowed to use the bot.",
	}, s.handleAllowList)
}

// Run serves MCP over stdio until ctx is done
func (s *MediaMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *MediaMCPServer) GetServer() *mcp.Server {
	return s.server
}

// SearchInput is the input for media_search
type SearchInput struct {
	Query string `json:"query" jsonschema:"what to search for, e.g. artist and song title"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, 1 to 5 (default 5)"`
}

// SearchResult is one search hit
type SearchResult struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration string `json:"duration,omitempty"`
}

// SearchOutput is the output for media_search
type SearchOutput struct {
	Results []SearchResult `json:"results"`
	Error   string         `json:"error,omitempty"`
}

func (s *MediaMCPServer) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{Error: "query is required"}, nil
	}
	limit := input.Limit
	if limit <= 0 || limit > domain.MaxSearchItems {
		limit = domain.MaxSearchItems
	}

	items, err := s.search.Search(ctx, query, limit)
	if err != nil {
		s.log.Warn("search failed", "query", query, logger.FieldError, err)
		return nil, SearchOutput{Error: err.Error()}, nil
	}

	out := SearchOutput{Results: make([]SearchResult, 0, len(items))}
	for _, item := range items {
		r := SearchResult{Title: item.Title, URL: item.URL}
		if item.Duration > 0 {
			r.Duration = item.FormatDuration()
		}
		out.Results = append(out.Results, r)
	}
	return nil, out, nil
}

// EmptyInput is the input for tools without arguments
type EmptyInput struct{}

// StatusOutput is the output for bot_status
type StatusOutput struct {
	Status *api.Status `json:"status,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (s *MediaMCPServer) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatusOutput, error) {
	if s.bot == nil {
		return nil, StatusOutput{Error: errNoBot.Error()}, nil
	}
	st, err := s.bot.Status(ctx)
	if err != nil {
		return nil, StatusOutput{Error: err.Error()}, nil
	}
	return nil, StatusOutput{Status: st}, nil
}

// JobInfo describes a running job
type JobInfo struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	Requester string `json:"requester"`
	Source    string `json:"source"`
	State     string `json:"state"`
	StartedAt string `json:"started_at"`
}

// JobsOutput is the output for bot_jobs
type JobsOutput struct {
	Jobs  []JobInfo `json:"jobs"`
	Error string    `json:"error,omitempty"`
}

func (s *MediaMCPServer) handleJobs(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, JobsOutput, error) {
	if s.bot == nil {
		return nil, JobsOutput{Error: errNoBot.Error()}, nil
	}
	jobs, err := s.bot.Jobs(ctx)
	if err != nil {
		return nil, JobsOutput{Error: err.Error()}, nil
	}
	out := JobsOutput{Jobs: make([]JobInfo, 0, len(jobs))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, JobInfo{
			ID:        j.ID,
			ChatID:    j.ChatID,
			Requester: j.Requester,
			Source:    j.Source,
			State:     string(j.State),
			StartedAt: j.StartedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// AllowListOutput is the output for bot_allowlist
type AllowListOutput struct {
	PublicMode bool     `json:"public_mode"`
	Identities []string `json:"identities"`
	Error      string   `json:"error,omitempty"`
}

func (s *MediaMCPServer) handleAllowList(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, AllowListOutput, error) {
	if s.bot == nil {
		return nil, AllowListOutput{Error: errNoBot.Error()}, nil
	}
	list, err := s.bot.AllowList(ctx)
	if err != nil {
		return nil, AllowListOutput{Error: err.Error()}, nil
	}
	return nil, AllowListOutput{PublicMode: list.PublicMode, Identities: list.Identities}, nil
}

var errNoBot = errors.New("bot API not configured")
