package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Snake",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Snake - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Steer the snake (h head, b body) to the food (f). Each food adds one point and
one segment. Hitting a wall (#) or your own body ends the game.

FLOW:
1. preview_levels to see the boards, then create_session with a level
2. send_key to turn (ArrowUp/ArrowDown/ArrowLeft/ArrowRight), then tick to advance one step
3. get_board at any time; leaderboard lists the best finished games

Reversing straight into your own neck is ignored. Edges without walls wrap around.`),
	)

	c.registerTools()
}

func sessionArg() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func glyphsArg() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"ascii", "emoji"},
		"description": "Glyph set for the board (default ascii)",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Levels
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List available levels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "preview_levels",
		Description: "Render the starting board of every level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"glyphs": glyphsArg(),
			},
		},
	}, c.handlePreviewLevels)

	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session on a level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Level to play (optional, defaults to snake1)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionArg(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Play
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_board",
		Description: "Render the current board without advancing the game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionArg(),
				"glyphs":     glyphsArg(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetBoard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "send_key",
		Description: "Press an arrow key. The new direction applies on the next tick",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionArg(),
				"key": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight"},
					"description": "Arrow key to press",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of why you are turning (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "key"},
		},
	}, c.handleSendKey)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the game by one or more steps in the current direction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionArg(),
				"steps": map[string]interface{}{
					"type":        "integer",
					"description": "Number of steps (default 1, max 50). Stops early when the game ends",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_session",
		Description: "Run the game on the server in real time until the snake dies or stop_session is called",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionArg(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleStartSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_session",
		Description: "Stop a game started with start_session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionArg(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleStopSession)

	// Results
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Best finished games, for one level or all",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "string",
					"description": "Level ID (optional, all levels when empty)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results (default 10)",
				},
			},
		},
	}, c.handleLeaderboard)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

// intArg reads a JSON number, which arrives as float64
func intArg(args map[string]interface{}, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Tool handlers

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []service.LevelInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Levels (%d):\n\n", len(levels))
	for _, l := range levels {
		fmt.Fprintf(&sb, "- %s: %dx%d, %dms per step", l.ID, l.Width, l.Height, l.PeriodMs)
		if l.Description != "" {
			fmt.Fprintf(&sb, " - %s", l.Description)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handlePreviewLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path := "/api/levels/previews"
	if g := stringArg(args, "glyphs"); g != "" {
		path += "?glyphs=" + url.QueryEscape(g)
	}

	var previews []harness.Preview
	if err := c.apiCall(ctx, "GET", path, nil, &previews); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	for _, p := range previews {
		fmt.Fprintf(&sb, "=== %s ===\n%s\n", p.Name, p.Board)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]string{}
	if level := stringArg(args, "level"); level != "" {
		body["level"] = level
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&sb, "- %s (Level: %s, Score: %d, Tick: %d%s)\n",
			s.ID, s.LevelID, s.Snapshot.Score, s.Tick, statusSuffix(&s))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGetBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path := "/api/sessions/" + url.PathEscape(stringArg(args, "session_id")) + "/board"
	if g := stringArg(args, "glyphs"); g != "" {
		path += "?glyphs=" + url.QueryEscape(g)
	}

	var frame service.Frame
	if err := c.apiCall(ctx, "GET", path, nil, &frame); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatFrame(&frame)), nil
}

func (c *Client) handleSendKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := stringArg(args, "session_id")

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	_ = stringArg(args, "intent")

	var session service.SessionInfo
	body := map[string]string{"key": stringArg(args, "key")}
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/key", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Direction is now %s (applies on the next tick)\n", session.Direction)), nil
}

// maxSteps bounds a single tick call
const maxSteps = 50

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID := stringArg(args, "session_id")
	steps := intArg(args, "steps", 1)
	if steps < 1 {
		steps = 1
	}
	if steps > maxSteps {
		steps = maxSteps
	}

	var frame service.Frame
	executed := 0
	for executed < steps {
		if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/tick", nil, &frame); err != nil {
			if executed == 0 {
				return mcp.NewToolResultError(err.Error()), nil
			}
			break
		}
		executed++
		if frame.Snapshot.DieReason != "" {
			break
		}
	}

	result := fmt.Sprintf("Executed %d/%d steps\n\n%s", executed, steps, formatFrame(&frame))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/start", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s is running, one step every %dms\n",
		session.ID, session.Snapshot.PeriodDurationMs)), nil
}

func (c *Client) handleStopSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(arguments(request), "session_id")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+url.PathEscape(sessionID)+"/stop", nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Stopped.\n" + formatSessionInfo(&session)), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	level := stringArg(args, "level")

	path := "/api/leaderboard"
	if level != "" {
		path += "/" + url.PathEscape(level)
	}
	if limit := intArg(args, "limit", 0); limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Results []service.Result `json:"results"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Results) == 0 {
		return mcp.NewToolResultText("No finished games yet.\n"), nil
	}

	var sb strings.Builder
	for i, r := range response.Results {
		fmt.Fprintf(&sb, "%d. %d points on %s in %d ticks (session %s, died %s)\n",
			i+1, r.Score, r.LevelID, r.Ticks, r.SessionID, r.DieReason)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// Formatting helpers

func statusSuffix(s *service.SessionInfo) string {
	switch {
	case s.Snapshot.DieReason != "":
		return ", died " + s.Snapshot.DieReason
	case s.Running:
		return ", running"
	}
	return ""
}

func formatSessionInfo(s *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nLevel: %s (%dx%d)\nDirection: %s\nTick: %d\nScore: %d%s\n",
		s.ID, s.LevelID, s.Width, s.Height, s.Direction, s.Tick, s.Snapshot.Score, statusSuffix(s))
}

func formatFrame(f *service.Frame) string {
	var sb strings.Builder
	sb.WriteString(f.Board)
	fmt.Fprintf(&sb, "\nTick: %d  Score: %d", f.Tick, f.Snapshot.Score)
	if n := len(f.Snapshot.Snake); n >= 2 {
		fmt.Fprintf(&sb, "  Head: (%d,%d)", f.Snapshot.Snake[n-2], f.Snapshot.Snake[n-1])
	}
	fmt.Fprintf(&sb, "  Food: (%d,%d)\n", f.Snapshot.Food[0], f.Snapshot.Food[1])
	if f.Snapshot.DieReason != "" {
		fmt.Fprintf(&sb, "GAME OVER: died %s\n", f.Snapshot.DieReason)
	}
	return sb.String()
}
