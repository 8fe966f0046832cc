package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/colthorp/eater-cli-go/internal/api"
	"github.com/colthorp/eater-cli-go/internal/app"
	"github.com/colthorp/eater-cli-go/internal/core"
	"github.com/colthorp/eater-cli-go/internal/logger"
	"github.com/colthorp/eater-cli-go/internal/output"
	"github.com/colthorp/eater-cli-go/internal/stats"
)

// MCP Protocol types
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type MCPToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type MCPInitializeResult struct {
	ProtocolVersion string        `json:"protocolVersion"`
	ServerInfo      MCPServerInfo `json:"serverInfo"`
	Capabilities    any           `json:"capabilities"`
}

// DayParams are the parameters for the eater_day tool
type DayParams struct {
	DateSpec string `json:"date_spec"`
}

// StatsParams are the parameters for the eater_stats tool
type StatsParams struct {
	Period  string `json:"period"`
	Alcohol bool   `json:"alcohol"`
}

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type mcpServer struct {
	app *app.App
	in  io.Reader
	out io.Writer
	now func() time.Time
	log *zap.SugaredLogger
}

func newMCPServer(a *app.App, in io.Reader, out io.Writer) *mcpServer {
	return &mcpServer{app: a, in: in, out: out, now: time.Now, log: logger.For(logger.ComponentApp)}
}

// serve reads one JSON-RPC message per line until in is exhausted or ctx ends.
func (s *mcpServer) serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	const maxCapacity = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			// No ID to answer to; a response with id null confuses clients.
			s.log.Warnw("mcp parse error", "error", err)
			continue
		}
		s.handle(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

func (s *mcpServer) handle(ctx context.Context, req *MCPRequest) {
	switch req.Method {
	case "initialize":
		s.sendResponse(req.ID, MCPInitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      MCPServerInfo{Name: "eater-cli", Version: core.Version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "initialized", "notifications/initialized":
		return
	case "tools/list":
		s.sendResponse(req.ID, map[string]any{"tools": toolList()})
	case "tools/call":
		s.handleToolsCall(ctx, req)
	default:
		// Notifications carry no ID and get no response.
		if req.ID != nil {
			s.sendError(req.ID, codeMethodNotFound, "Method not found", req.Method)
		}
	}
}

func toolList() []MCPToolInfo {
	return []MCPToolInfo{
		{
			Name:        "eater_day",
			Description: "Food records for one day with calories, macros and local extras. Today is served from the local cache when fresh and includes the effective calorie limits.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date_spec": map[string]any{
						"type":        "string",
						"description": "YYYY-MM-DD, M/D, d-N, or shorthand ('today', 'yesterday')",
						"default":     "today",
					},
				},
			},
		},
		{
			Name:        "eater_stats",
			Description: "Per-day macro statistics and averages for a period ending today, or the drinks logged in it.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"period": map[string]any{
						"type":    "string",
						"enum":    []string{stats.Week.String(), stats.Month.String(), stats.TwoMonths.String(), stats.ThreeMonths.String()},
						"default": stats.Week.String(),
					},
					"alcohol": map[string]any{
						"type":        "boolean",
						"description": "Return drinks instead of macros",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "eater_chess",
			Description: "Chess ledger: total wins, league tier, per-opponent scores and the selected opponent.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (s *mcpServer) handleToolsCall(ctx context.Context, req *MCPRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	switch params.Name {
	case "eater_day":
		s.toolDay(ctx, req.ID, params.Arguments)
	case "eater_stats":
		s.toolStats(ctx, req.ID, params.Arguments)
	case "eater_chess":
		s.sendToolResult(req.ID, map[string]any{
			"state": s.app.Chess.State(),
			"today": s.app.Today(),
		})
	default:
		s.sendError(req.ID, codeInvalidParams, "Unknown tool", params.Name)
	}
}

func (s *mcpServer) toolDay(ctx context.Context, id any, argsJSON json.RawMessage) {
	var args DayParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}
	if args.DateSpec == "" {
		args.DateSpec = "today"
	}

	date, err := parseDateSpec(args.DateSpec, s.now())
	if err != nil {
		s.sendToolResult(id, map[string]any{
			"error":         fmt.Sprintf("Invalid date specification: %s", args.DateSpec),
			"valid_formats": []string{"YYYY-MM-DD", "M/D", "d-N", "today", "yesterday"},
			"date_spec":     args.DateSpec,
		})
		return
	}

	s.app.Fetch.ViewDate(date)
	v := s.app.Fetch.LoadInitial(ctx)
	r := output.NewDayReport(v, s.app.Decorate(v))
	if v.Today {
		soft, hard, bonus, err := s.app.EffectiveLimits()
		if err == nil {
			r.SoftLimit, r.HardLimit, r.SportBonus = soft, hard, bonus
		}
	}
	s.sendToolResult(id, r)
}

func (s *mcpServer) toolStats(ctx context.Context, id any, argsJSON json.RawMessage) {
	var args StatsParams
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		s.sendToolError(id, fmt.Sprintf("Invalid arguments: %v", err))
		return
	}
	period := stats.Week
	if args.Period != "" {
		p, err := stats.ParsePeriod(args.Period)
		if err != nil {
			s.sendToolError(id, err.Error())
			return
		}
		period = p
	}

	if args.Alcohol {
		end := core.DateOnly(s.now())
		r := api.DateRange{Start: end.AddDate(0, 0, -(period.Days() - 1)), End: end}
		events, stale, err := s.app.Stats.Alcohol(ctx, r)
		if err != nil {
			s.sendToolError(id, fmt.Sprintf("Failed to fetch alcohol: %v", err))
			return
		}
		s.sendToolResult(id, map[string]any{"period": period.String(), "events": events, "stale": stale})
		return
	}

	series, err := s.app.Stats.Load(ctx, period)
	if err != nil {
		s.sendToolError(id, fmt.Sprintf("Failed to load statistics: %v", err))
		return
	}
	s.sendToolResult(id, map[string]any{
		"period":   period.String(),
		"days":     series.Days,
		"averages": series.Averages(),
		"loading":  series.Loading,
	})
}

func (s *mcpServer) write(resp MCPResponse) {
	if err := output.WriteJSONLine(s.out, resp); err != nil {
		s.log.Warnw("mcp write failed", "error", err)
	}
}

func (s *mcpServer) sendResponse(id, result any) {
	s.write(MCPResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *mcpServer) sendError(id any, code int, message, data string) {
	s.write(MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message, Data: data},
	})
}

func (s *mcpServer) sendToolResult(id, result any) {
	s.sendResponse(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": mustMarshal(result)},
		},
	})
}

func (s *mcpServer) sendToolError(id any, message string) {
	s.sendResponse(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": message},
		},
		"isError": true,
	})
}

func mustMarshal(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(data)
}
