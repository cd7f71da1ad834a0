package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dejo1307/pydiag/internal/catalog"
	"github.com/dejo1307/pydiag/internal/config"
	"github.com/dejo1307/pydiag/internal/engine"
	"github.com/dejo1307/pydiag/internal/sessions"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// SessionStore is the subset of the session store the server uses.
type SessionStore interface {
	Save(ctx context.Context, sess sessions.Session) (string, error)
	Recent(ctx context.Context, user string, limit int) ([]sessions.Session, error)
	Dashboard(ctx context.Context, user string, rules, facts int) (sessions.Dashboard, error)
}

// Server wraps the MCP server and connects it to the analysis engine.
type Server struct {
	mcp    *mcp.Server
	eng    *engine.Engine
	cfg    *config.Config
	store  SessionStore // nil when history is disabled
	logger *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSessions enables the history tools backed by store.
func WithSessions(store SessionStore) Option {
	return func(s *Server) { s.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l.Named("server") }
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config, opts ...Option) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("server: nil engine")
	}
	if cfg == nil {
		cfg = eng.Config()
	}
	s := &Server{
		eng:    eng,
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "pydiag",
		Version: Version,
	}, nil)
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport",
		zap.Int("rules", s.eng.Catalog().RuleCount()),
		zap.Bool("sessions", s.store != nil))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// registerResources adds MCP resources for the knowledge base.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         "kb://rules",
		Name:        "Diagnostic Rules",
		Description: "Every diagnostic rule in evaluation order, with its pattern and priority",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		data, err := json.MarshalIndent(s.eng.Catalog().Rules(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling rules: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: string(data), MIMEType: "application/json"},
			},
		}, nil
	})

	s.mcp.AddResource(&mcp.Resource{
		URI:         "kb://facts",
		Name:        "Knowledge Base Facts",
		Description: "Reference facts about Python errors in JSONL format",
		MIMEType:    "application/jsonl",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		var buf bytes.Buffer
		if err := s.eng.Catalog().WriteFactsJSONL(&buf); err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: buf.String(), MIMEType: "application/jsonl"},
			},
		}, nil
	})
}

// analyzeArgs are the arguments for the analyze_code tool.
type analyzeArgs struct {
	Code       string `json:"code" jsonschema:"Python source text to analyze"`
	Format     string `json:"format,omitempty" jsonschema:"Report format: text, markdown or json. Defaults to the configured format."`
	AnonUserID string `json:"anon_user_id,omitempty" jsonschema:"Anonymous user id; when set the analysis is saved to history"`
	UserType   string `json:"user_type,omitempty" jsonschema:"User type stored with the session (default anonymous)"`
}

// searchRulesArgs are the arguments for the search_rules tool.
type searchRulesArgs struct {
	Query string `json:"query,omitempty" jsonschema:"Case-insensitive text matched against rule head, description and category. Empty returns all rules."`
}

// searchFactsArgs are the arguments for the search_facts tool.
type searchFactsArgs struct {
	Query     string `json:"query,omitempty" jsonschema:"Case-insensitive text matched against predicate, description and arguments"`
	Category  string `json:"category,omitempty" jsonschema:"Filter by category: syntax_error, indentation_error, logic_error, style_warning, performance_issue or priority"`
	Predicate string `json:"predicate,omitempty" jsonschema:"Filter by exact predicate"`
	Offset    int    `json:"offset,omitempty" jsonschema:"Number of results to skip"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum results (default 100, max 500)"`
}

// userArgs identify whose history to read.
type userArgs struct {
	AnonUserID string `json:"anon_user_id" jsonschema:"Anonymous user id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum sessions to return (recent_sessions only)"`
}

// registerTools adds MCP tools for analysis, knowledge-base search and history.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_code",
		Description: "Analyze Python source text against the diagnostic rule base. Returns findings ranked by priority and the evaluation trace.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeArgs) (*mcp.CallToolResult, any, error) {
		return s.analyzeCode(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_rules",
		Description: "Search the diagnostic rules. Returns matching rules as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchRulesArgs) (*mcp.CallToolResult, any, error) {
		return s.searchRules(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_facts",
		Description: "Search the reference facts by text, category or predicate. Returns a page of matching facts as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchFactsArgs) (*mcp.CallToolResult, any, error) {
		return s.searchFacts(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recent_sessions",
		Description: "List a user's most recent saved analyses, newest first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args userArgs) (*mcp.CallToolResult, any, error) {
		return s.recentSessions(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "dashboard_stats",
		Description: "Summarize a user's history: sessions, distinct finding categories, and knowledge-base size.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args userArgs) (*mcp.CallToolResult, any, error) {
		return s.dashboardStats(ctx, args), nil, nil
	})
}

func (s *Server) analyzeCode(ctx context.Context, args analyzeArgs) *mcp.CallToolResult {
	out, err := s.analyze(ctx, args.Code)
	if err != nil {
		return errorResult(err.Error())
	}

	format := args.Format
	if format == "" {
		format = s.cfg.Output.Format
	}
	artifacts, err := s.eng.Render(ctx, out, format)
	if err != nil {
		return errorResult(err.Error())
	}

	var sb strings.Builder
	for _, a := range artifacts {
		sb.Write(a.Content)
	}

	if args.AnonUserID != "" && s.store != nil {
		sess := sessions.FromOutcome(args.AnonUserID, args.UserType, args.Code, out)
		id, err := s.store.Save(ctx, sess)
		if err != nil {
			s.logger.Warn("saving session failed", zap.String("user", args.AnonUserID), zap.Error(err))
			fmt.Fprintf(&sb, "\n\nSession not saved: %v", err)
		} else {
			fmt.Fprintf(&sb, "\n\nSession saved: %s", id)
		}
	}

	return textResult(sb.String())
}

// analyze runs the engine, giving up after the configured call timeout.
// The engine has no cancellation points, so an abandoned run finishes in the
// background.
func (s *Server) analyze(ctx context.Context, code string) (*engine.Outcome, error) {
	if timeout := s.cfg.Analysis.CallTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan *engine.Outcome, 1)
	go func() { done <- s.eng.Analyze(code) }()

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		s.logger.Warn("analysis abandoned", zap.Int("code_bytes", len(code)), zap.Error(ctx.Err()))
		return nil, fmt.Errorf("analysis did not finish: %w", ctx.Err())
	}
}

func (s *Server) searchRules(args searchRulesArgs) *mcp.CallToolResult {
	rules := s.eng.Catalog().SearchRules(args.Query)
	if len(rules) == 0 {
		return textResult(fmt.Sprintf("No rules matching %q", args.Query))
	}
	return jsonResult(rules)
}

func (s *Server) searchFacts(args searchFactsArgs) *mcp.CallToolResult {
	category := catalog.FactCategory(args.Category)
	if category != "" && !category.Valid() {
		return errorResult(fmt.Sprintf("unknown fact category %q", args.Category))
	}

	facts, total := s.eng.Catalog().QueryFacts(catalog.FactQuery{
		Category:  category,
		Predicate: args.Predicate,
		Text:      args.Query,
		Offset:    args.Offset,
		Limit:     args.Limit,
	})
	if total == 0 {
		return textResult("No facts match the query.")
	}

	res := jsonResult(facts)
	if len(facts) < total {
		text := res.Content[0].(*mcp.TextContent)
		text.Text += fmt.Sprintf("\n\n... (showing %d of %d results starting at %d)", len(facts), total, args.Offset)
	}
	return res
}

func (s *Server) recentSessions(ctx context.Context, args userArgs) *mcp.CallToolResult {
	if s.store == nil {
		return errorResult("Session history is disabled.")
	}
	if args.AnonUserID == "" {
		return errorResult("anon_user_id is required")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = s.cfg.Sessions.RecentLimit
	}
	recent, err := s.store.Recent(ctx, args.AnonUserID, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("reading sessions: %v", err))
	}
	return jsonResult(recent)
}

func (s *Server) dashboardStats(ctx context.Context, args userArgs) *mcp.CallToolResult {
	if s.store == nil {
		return errorResult("Session history is disabled.")
	}
	if args.AnonUserID == "" {
		return errorResult("anon_user_id is required")
	}
	cat := s.eng.Catalog()
	d, err := s.store.Dashboard(ctx, args.AnonUserID, cat.RuleCount(), cat.FactCount())
	if err != nil {
		return errorResult(fmt.Sprintf("reading stats: %v", err))
	}
	return jsonResult(d)
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
