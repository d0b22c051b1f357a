// Package mcpserver exposes the rule store as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/rulestore"
)

// FormatURI is the resource holding RuleFormatContract.
const FormatURI = "rules://format"

// RuleService is the subset of *rulestore.Store the tools use.
type RuleService interface {
	Add(ctx context.Context, req rulestore.AddRequest) (*rulestore.AddResult, error)
	List(ctx context.Context, req rulestore.ListRequest) (*rulestore.ListResult, error)
	Delete(ctx context.Context, req rulestore.DeleteRequest) (*rulestore.DeleteResult, error)
	Update(ctx context.Context, req rulestore.UpdateRequest) (*rulestore.UpdateResult, error)
	Review(ctx context.Context, req rulestore.ReviewRequest) (*rulestore.ReviewResult, error)
	History(ctx context.Context, req rulestore.HistoryRequest) (*rulestore.HistoryResult, error)
}

// Server wraps the MCP server with the rule tools.
type Server struct {
	mcp        *server.MCPServer
	rules      RuleService
	defaultDir string
	logger     *slog.Logger
}

var (
	scopeArg = mcp.WithString("scope",
		mcp.Description("auto: nearest project CLAUDE.md, else global. global: always ~/.claude/CLAUDE.md"),
		mcp.Enum(locate.ModeAuto, locate.ModeGlobal))
	dirArg = mcp.WithString("project_dir",
		mcp.Description("Directory the project lookup starts from (default: server working directory)"))
)

// New creates an MCP server with all rule tools registered. defaultDir is
// where document lookup starts when a call names no project_dir.
func New(rules RuleService, defaultDir, version string, logger *slog.Logger) *Server {
	s := &Server{rules: rules, defaultDir: defaultDir, logger: logger}

	s.mcp = server.NewMCPServer(
		"rulekeeper",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("add_rule",
		mcp.WithDescription("Record a rule learned from a correction so it applies in future sessions. "+
			"Rules that are substrings of existing ones (or contain one) are skipped. "+
			"Check list_rules first for rules with the same meaning."),
		mcp.WithString("rule", mcp.Required(), mcp.Description("Imperative one-line rule, e.g. \"Use pytest, not unittest\"")),
		mcp.WithString("context", mcp.Description("The correction or situation the rule was learned from")),
		mcp.WithString("category", mcp.Description("Category key such as bash, git, testing; inferred when empty")),
		scopeArg, dirArg,
	), s.addRule)

	s.mcp.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List learned rules with their numbers, dates and categories."),
		mcp.WithString("category", mcp.Description("Only this category (or \"uncategorized\")")),
		mcp.WithBoolean("grouped", mcp.Description("Group rules under category headings")),
		scopeArg, dirArg,
	), s.listRules)

	s.mcp.AddTool(mcp.NewTool("delete_rule",
		mcp.WithDescription("Delete one learned rule, selected by number or by a unique text match."),
		mcp.WithNumber("index", mcp.Description("Rule number as shown by list_rules")),
		mcp.WithString("match", mcp.Description("Case-insensitive text that matches exactly one rule")),
		scopeArg, dirArg,
	), s.deleteRule)

	s.mcp.AddTool(mcp.NewTool("update_rule",
		mcp.WithDescription("Rewrite one learned rule and refresh its date. Select it by number or by a unique text match."),
		mcp.WithNumber("index", mcp.Description("Rule number as shown by list_rules")),
		mcp.WithString("match", mcp.Description("Case-insensitive text that matches exactly one rule")),
		mcp.WithString("new_rule", mcp.Required(), mcp.Description("Replacement rule text")),
		mcp.WithString("category", mcp.Description("Move the rule to this category")),
		scopeArg, dirArg,
	), s.updateRule)

	s.mcp.AddTool(mcp.NewTool("review_rules",
		mcp.WithDescription("Show which rules are old enough to re-check, which are recent and which have no date."),
		mcp.WithNumber("threshold_days", mcp.Description("Age in days from which a rule counts as old (default 30)")),
		scopeArg, dirArg,
	), s.reviewRules)

	s.mcp.AddTool(mcp.NewTool("rule_history",
		mcp.WithDescription("Show recent additions, updates and deletions of rules."),
		mcp.WithNumber("limit", mcp.Description("Max entries (default 50)")),
		mcp.WithBoolean("all", mcp.Description("Include every document, not just the resolved one")),
		scopeArg, dirArg,
	), s.ruleHistory)

	s.mcp.AddTool(mcp.NewTool("get_rule_format",
		mcp.WithDescription("Returns the learned rules format contract. "+
			"Read it once to learn how rules are stored and how to phrase them."),
	), s.getRuleFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Learned Rules Format",
			mcp.WithResourceDescription("How learned rules are stored in CLAUDE.md."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// Listen serves MCP over the given streams until ctx is cancelled or in is
// exhausted. Transport errors go to the server logger.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) scope(req mcp.CallToolRequest) (locate.Scope, error) {
	return locate.ParseScope(req.GetString("scope", ""), req.GetString("project_dir", ""), s.defaultDir)
}

// selector reads index and match. An index argument is only used when present
// and not null.
func selector(req mcp.CallToolRequest) rulestore.Selector {
	var sel rulestore.Selector
	if v, ok := req.GetArguments()["index"]; ok && v != nil {
		sel = rulestore.At(req.GetInt("index", 0))
	}
	sel.Match = req.GetString("match", "")
	return sel
}

// toolError turns err into a tool result. Errors the caller can act on are
// returned as is; anything else is logged too.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	known := errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrAmbiguous) || errors.Is(err, apperr.ErrConflict) ||
		errors.Is(err, apperr.ErrUnavailable)
	if !known {
		s.logger.Error("tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) addRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("rule")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope, err := s.scope(req)
	if err != nil {
		return s.toolError("add_rule", err), nil
	}
	res, err := s.rules.Add(ctx, rulestore.AddRequest{
		Text:     text,
		Context:  req.GetString("context", ""),
		Category: req.GetString("category", ""),
		Scope:    scope,
	})
	if err != nil {
		return s.toolError("add_rule", err), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}

func (s *Server) listRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := s.scope(req)
	if err != nil {
		return s.toolError("list_rules", err), nil
	}
	res, err := s.rules.List(ctx, rulestore.ListRequest{
		Category: req.GetString("category", ""),
		Grouped:  req.GetBool("grouped", false),
		Scope:    scope,
	})
	if err != nil {
		return s.toolError("list_rules", err), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}

func (s *Server) deleteRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := s.scope(req)
	if err != nil {
		return s.toolError("delete_rule", err), nil
	}
	res, err := s.rules.Delete(ctx, rulestore.DeleteRequest{Selector: selector(req), Scope: scope})
	if err != nil {
		return s.toolError("delete_rule", err), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}

func (s *Server) updateRule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("new_rule")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope, err := s.scope(req)
	if err != nil {
		return s.toolError("update_rule", err), nil
	}
	res, err := s.rules.Update(ctx, rulestore.UpdateRequest{
		Selector: selector(req),
		Text:     text,
		Category: req.GetString("category", ""),
		Scope:    scope,
	})
	if err != nil {
		return s.toolError("update_rule", err), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}

func (s *Server) reviewRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := s.scope(req)
	if err != nil {
		return s.toolError("review_rules", err), nil
	}
	res, err := s.rules.Review(ctx, rulestore.ReviewRequest{
		ThresholdDays: req.GetInt("threshold_days", 0),
		Scope:         scope,
	})
	if err != nil {
		return s.toolError("review_rules", err), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}

func (s *Server) ruleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := s.scope(req)
	if err != nil {
		return s.toolError("rule_history", err), nil
	}
	res, err := s.rules.History(ctx, rulestore.HistoryRequest{
		Limit:        req.GetInt("limit", 0),
		AllDocuments: req.GetBool("all", false),
		Scope:        scope,
	})
	if err != nil {
		return s.toolError("rule_history", err), nil
	}
	return mcp.NewToolResultText(res.String()), nil
}

func (s *Server) getRuleFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RuleFormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     RuleFormatContract,
		},
	}, nil
}
