package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const (
	cellSize     = 32
	headerHeight = 48
	footerHeight = 24
	minWidth     = 480
)

// Arrow key codes accepted by the server over the websocket
const (
	codeLeft  = 37
	codeUp    = 38
	codeRight = 39
	codeDown  = 40
)

// Snapshot mirrors the server's snapshot JSON
type Snapshot struct {
	Snake            []int  `json:"snake"`
	Food             [2]int `json:"food"`
	Score            int    `json:"score"`
	DieReason        string `json:"die_reason,omitempty"`
	PeriodDurationMs int    `json:"period_duration_ms"`
}

// Frame is one step pushed by the server
type Frame struct {
	SessionID string   `json:"session_id"`
	Board     string   `json:"board"`
	Tick      int      `json:"tick"`
	Snapshot  Snapshot `json:"snapshot"`
}

// WSMessage represents WebSocket message wrapper
type WSMessage struct {
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Frame     *Frame `json:"frame,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SessionInfo is the subset of the session resource the client reads
type SessionInfo struct {
	ID       string   `json:"id"`
	LevelID  string   `json:"level_id"`
	Running  bool     `json:"running"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Tick     int      `json:"tick"`
	Snapshot Snapshot `json:"snapshot"`
}

// Level is the subset of a level definition the client draws
type Level struct {
	Name   string   `json:"name"`
	Layout []string `json:"layout"`
}

// Game is the desktop client for one session
type Game struct {
	baseURL string
	levelID string

	mu        sync.RWMutex
	sessionID string
	width     int
	height    int
	walls     map[[2]int]bool
	snapshot  Snapshot
	tick      int
	running   bool
	status    string
	wsConn    *websocket.Conn
}

// NewGame creates a client. It joins sessionID, or creates a session on
// levelID when sessionID is empty.
func NewGame(baseURL, levelID, sessionID string) (*Game, error) {
	g := &Game{baseURL: strings.TrimRight(baseURL, "/"), levelID: levelID}
	if err := g.join(sessionID); err != nil {
		return nil, err
	}
	return g, nil
}

// join loads the session and its level, then attaches the websocket
func (g *Game) join(sessionID string) error {
	var info SessionInfo
	var err error
	if sessionID == "" {
		err = g.api("POST", "/api/sessions", map[string]string{"level": g.levelID}, &info)
	} else {
		err = g.api("GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &info)
	}
	if err != nil {
		return err
	}

	var level Level
	if err := g.api("GET", "/api/levels/"+url.PathEscape(info.LevelID), nil, &level); err != nil {
		return err
	}

	g.mu.Lock()
	g.sessionID = info.ID
	g.levelID = info.LevelID
	g.width, g.height = info.Width, info.Height
	g.walls = parseWalls(level.Layout)
	g.snapshot = info.Snapshot
	g.tick = info.Tick
	g.running = info.Running
	g.status = ""
	g.mu.Unlock()

	log.Info().
		Str("session", info.ID).
		Str("level", info.LevelID).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("Joined session")

	conn, err := g.connectWebSocket(info.ID)
	if err != nil {
		log.Warn().Err(err).Str("session", info.ID).Msg("Failed to connect WebSocket")
		return nil
	}
	go g.listenWebSocket(conn)
	return nil
}

// parseWalls reads wall cells from a layout, bottom row first
func parseWalls(layout []string) map[[2]int]bool {
	walls := make(map[[2]int]bool)
	for row, line := range layout {
		y := len(layout) - 1 - row
		for x, c := range line {
			if c == '#' {
				walls[[2]int{x, y}] = true
			}
		}
	}
	return walls
}

// wsURL turns the API base URL into the websocket endpoint for a session
func wsURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	return u.String(), nil
}

// connectWebSocket establishes WebSocket connection
func (g *Game) connectWebSocket(sessionID string) (*websocket.Conn, error) {
	target, err := wsURL(g.baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.wsConn != nil {
		g.wsConn.Close()
	}
	g.wsConn = conn
	g.mu.Unlock()
	return conn, nil
}

// listenWebSocket applies frames until the connection closes
func (g *Game) listenWebSocket(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("WebSocket read error")
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Warn().Err(err).Msg("WebSocket JSON parse error")
			continue
		}
		g.apply(&msg)
	}
}

// apply folds one websocket message into the client state
func (g *Game) apply(msg *WSMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if msg.SessionID != "" && msg.SessionID != g.sessionID {
		return
	}
	switch {
	case msg.Error != "":
		g.status = msg.Error
	case msg.Event == "started":
		g.running = true
	case msg.Event == "stopped":
		g.running = false
	case msg.Frame != nil:
		g.snapshot = msg.Frame.Snapshot
		g.tick = msg.Frame.Tick
		if msg.Frame.Snapshot.DieReason != "" {
			g.running = false
			g.status = "died " + msg.Frame.Snapshot.DieReason
		}
	}
}

// sendKey forwards an arrow key over the websocket
func (g *Game) sendKey(code int) {
	g.mu.RLock()
	conn := g.wsConn
	g.mu.RUnlock()
	if conn == nil {
		return
	}
	if err := conn.WriteJSON(map[string]int{"code": code}); err != nil {
		log.Warn().Err(err).Int("code", code).Msg("Failed to send key")
	}
}

// toggle starts or stops the server-side game loop
func (g *Game) toggle() {
	g.mu.RLock()
	action := "start"
	if g.running {
		action = "stop"
	}
	path := fmt.Sprintf("/api/sessions/%s/%s", url.PathEscape(g.sessionID), action)
	g.mu.RUnlock()

	var info SessionInfo
	if err := g.api("POST", path, nil, &info); err != nil {
		g.mu.Lock()
		g.status = err.Error()
		g.mu.Unlock()
		return
	}
	g.mu.Lock()
	g.running = info.Running
	g.mu.Unlock()
}

func (g *Game) api(method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}
	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Update handles input
func (g *Game) Update() error {
	keys := map[ebiten.Key]int{
		ebiten.KeyArrowLeft:  codeLeft,
		ebiten.KeyArrowUp:    codeUp,
		ebiten.KeyArrowRight: codeRight,
		ebiten.KeyArrowDown:  codeDown,
		ebiten.KeyA:          codeLeft,
		ebiten.KeyW:          codeUp,
		ebiten.KeyD:          codeRight,
		ebiten.KeyS:          codeDown,
	}
	for key, code := range keys {
		if inpututil.IsKeyJustPressed(key) {
			g.sendKey(code)
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		go g.toggle()
	}

	// New game on the same level
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		go func() {
			if err := g.join(""); err != nil {
				log.Error().Err(err).Msg("Failed to create session")
			}
		}()
	}
	return nil
}

// Draw renders the board with y=0 at the bottom
func (g *Game) Draw(screen *ebiten.Image) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	screen.Fill(color.RGBA{20, 20, 30, 255})

	toScreen := func(x, y int) (float64, float64) {
		return float64(x * cellSize), float64(headerHeight + (g.height-1-y)*cellSize)
	}

	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			sx, sy := toScreen(x, y)
			ebitenutil.DrawRect(screen, sx, sy, cellSize-1, cellSize-1, getCellColor(g.walls[[2]int{x, y}]))
		}
	}

	fx, fy := toScreen(g.snapshot.Food[0], g.snapshot.Food[1])
	ebitenutil.DrawRect(screen, fx+6, fy+6, cellSize-13, cellSize-13, color.RGBA{255, 80, 80, 255})

	snake := g.snapshot.Snake
	for i := 0; i+1 < len(snake); i += 2 {
		sx, sy := toScreen(snake[i], snake[i+1])
		c := color.RGBA{60, 180, 75, 255}
		if i == len(snake)-2 {
			c = color.RGBA{140, 255, 120, 255}
		}
		ebitenutil.DrawRect(screen, sx+2, sy+2, cellSize-5, cellSize-5, c)
	}

	state := "paused"
	if g.running {
		state = "running"
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Session %s  Level %s  [%s]", g.sessionID, g.levelID, state), 8, 6)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Score: %d  Tick: %d  %s", g.snapshot.Score, g.tick, g.status), 8, 24)

	ebitenutil.DebugPrintAt(screen, "Arrows/WASD: Turn | SPACE: Start/Stop | R: New game", 8, headerHeight+g.height*cellSize+4)
}

// Layout returns the game screen size
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w := g.width * cellSize
	if w < minWidth {
		w = minWidth
	}
	return w, headerHeight + g.height*cellSize + footerHeight
}

// getCellColor returns the background color of a board cell
func getCellColor(wall bool) color.Color {
	if wall {
		return color.RGBA{100, 50, 0, 255}
	}
	return color.RGBA{45, 45, 55, 255}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "snake-desktop",
		Usage: "Play a snake session from the game server in a window",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Game server URL",
				Sources: cli.EnvVars("SNAKE_API_URL"),
			},
			&cli.StringFlag{
				Name:  "level",
				Value: "snake1",
				Usage: "Level for a new session",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Join an existing session by ID",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	game, err := NewGame(cmd.String("url"), cmd.String("level"), cmd.String("session"))
	if err != nil {
		return fmt.Errorf("failed to join game: %w", err)
	}

	w, h := game.Layout(0, 0)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("Snake - Desktop Client")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	// Frames arrive over the websocket; keep drawing even when unfocused
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetTPS(30)

	start := time.Now()
	if err := ebiten.RunGame(game); err != nil {
		return err
	}
	log.Info().Dur("played", time.Since(start).Round(time.Second)).Msg("Window closed")
	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Desktop client failed")
	}
}
