// Command autopilot plays snake against a running server through the REST
// API. Before every tick it asks the planner for the shortest path to the
// food and turns the snake when the first step differs from its heading.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/snakegame/game/autopilot"
	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/service"
)

// Client talks to the snake REST API for one session
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessionID  string
}

// NewClient creates an API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSession starts a new game on level
func (c *Client) CreateSession(ctx context.Context, level string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, "POST", "/api/sessions", map[string]string{"level": level}, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

// Resume attaches to an existing session
func (c *Client) Resume(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	if err := c.do(ctx, "GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

// Level fetches a level definition
func (c *Client) Level(ctx context.Context, levelID string) (*engine.Level, error) {
	var level engine.Level
	if err := c.do(ctx, "GET", "/api/levels/"+url.PathEscape(levelID), nil, &level); err != nil {
		return nil, err
	}
	return &level, nil
}

// SetDirection turns the snake before the next tick
func (c *Client) SetDirection(ctx context.Context, d engine.Direction) error {
	return c.do(ctx, "POST", c.sessionPath("direction"), map[string]string{"direction": d.String()}, nil)
}

// Tick advances the game one step
func (c *Client) Tick(ctx context.Context) (*service.Frame, error) {
	var frame service.Frame
	if err := c.do(ctx, "POST", c.sessionPath("tick"), nil, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

func (c *Client) sessionPath(action string) string {
	return fmt.Sprintf("/api/sessions/%s/%s", url.PathEscape(c.sessionID), action)
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
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
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Outcome summarises one autopilot run
type Outcome struct {
	SessionID string
	Score     int
	Ticks     int
	DieReason string
}

type runOptions struct {
	level    string
	resume   string
	maxTicks int
	delay    time.Duration
}

// run plays until the snake dies, maxTicks steps were taken or ctx is done
func run(ctx context.Context, client *Client, opts runOptions) (*Outcome, error) {
	var info *service.SessionInfo
	var err error
	if opts.resume != "" {
		info, err = client.Resume(ctx, opts.resume)
	} else {
		info, err = client.CreateSession(ctx, opts.level)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", info.ID).Str("level", info.LevelID).Msg("Playing")

	level, err := client.Level(ctx, info.LevelID)
	if err != nil {
		return nil, err
	}
	board := autopilot.NewBoard(level.Layout)

	heading, err := engine.ParseDirection(info.Direction)
	if err != nil {
		heading = engine.Up
	}

	out := &Outcome{SessionID: info.ID, Score: info.Snapshot.Score, DieReason: info.Snapshot.DieReason}
	snapshot := info.Snapshot

	for out.Ticks < opts.maxTicks && out.DieReason == "" {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		next := board.Next(snapshot.Snake, snapshot.Food, heading)
		if next != heading {
			if err := client.SetDirection(ctx, next); err != nil {
				return out, err
			}
			heading = next
		}

		frame, err := client.Tick(ctx)
		if err != nil {
			return out, err
		}
		snapshot = frame.Snapshot
		out.Ticks++
		out.DieReason = snapshot.DieReason

		if snapshot.Score > out.Score {
			log.Debug().Int("score", snapshot.Score).Int("tick", frame.Tick).Msg("Food eaten")
		}
		out.Score = snapshot.Score

		if opts.delay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(opts.delay):
			}
		}
	}

	return out, nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "autopilot",
		Usage: "Play snake automatically against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL", Sources: cli.EnvVars("SNAKE_API_URL")},
			&cli.StringFlag{Name: "level", Value: service.DefaultLevelID, Usage: "Level to play"},
			&cli.StringFlag{Name: "continue", Usage: "Resume playing an existing session by ID"},
			&cli.IntFlag{Name: "max-ticks", Value: 1000, Usage: "Maximum ticks before giving up"},
			&cli.DurationFlag{Name: "delay", Usage: "Delay between ticks, e.g. 100ms"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("v") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			out, err := run(ctx, NewClient(cmd.String("url")), runOptions{
				level:    cmd.String("level"),
				resume:   cmd.String("continue"),
				maxTicks: int(cmd.Int("max-ticks")),
				delay:    cmd.Duration("delay"),
			})
			if err != nil {
				return err
			}

			event := log.Info().Str("session", out.SessionID).Int("score", out.Score).Int("ticks", out.Ticks)
			if out.DieReason != "" {
				event.Str("died", out.DieReason).Msg("Game over")
			} else {
				event.Msg("Stopped")
			}
			return nil
		},
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Autopilot failed")
	}
}
