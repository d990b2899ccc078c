// Command snakegame serves and plays the snake game.
//
// Commands:
//   - serve: HTTP server with the REST API, WebSocket frames and an /mcp endpoint
//   - mcp: MCP stdio server, proxying an external API or an internal one
//   - play: play in the terminal with the arrow keys
//   - levels: list the available levels
//
// Flags can also be set from the environment or a .env file. The serve
// command can expose the server through an ngrok tunnel.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wricardo/mcp-training/snakegame/api"
	"github.com/wricardo/mcp-training/snakegame/game/board"
	"github.com/wricardo/mcp-training/snakegame/game/config"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
	"github.com/wricardo/mcp-training/snakegame/game/scores"
	"github.com/wricardo/mcp-training/snakegame/game/service"
	"github.com/wricardo/mcp-training/snakegame/game/session"
	"github.com/wricardo/mcp-training/snakegame/transport/mcp"
	"github.com/wricardo/mcp-training/snakegame/transport/terminal"
	"github.com/wricardo/mcp-training/snakegame/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Snake Game Server"
)

const defaultLevelsDir = "levels"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Exiting")
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	levelFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "levels-dir",
			Value:   defaultLevelsDir,
			Usage:   "Directory containing level JSON files",
			Sources: cli.EnvVars("LEVELS_DIR"),
		},
	}

	serviceFlags := withFlags(levelFlags,
		&cli.StringFlag{
			Name:    "sessions-dir",
			Value:   "sessions",
			Usage:   "Directory for persisted sessions (empty keeps sessions in memory)",
			Sources: cli.EnvVars("SESSIONS_DIR"),
		},
		&cli.StringFlag{
			Name:    "scores-db",
			Value:   "scores.db",
			Usage:   "SQLite file for the leaderboard (empty keeps results in memory)",
			Sources: cli.EnvVars("SCORES_DB"),
		},
	)

	return &cli.Command{
		Name:    "snakegame",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(os.Stderr, cmd.String("log-level"), cmd.Bool("debug"))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags: withFlags(serviceFlags,
					&cli.IntFlag{
						Name:    "port",
						Value:   8080,
						Usage:   "HTTP server port",
						Sources: cli.EnvVars("PORT"),
					},
					&cli.StringFlag{
						Name:    "host",
						Value:   "localhost",
						Usage:   "HTTP server host",
						Sources: cli.EnvVars("HOST"),
					},
					&cli.DurationFlag{
						Name:  "session-ttl",
						Value: 24 * time.Hour,
						Usage: "Remove sessions not accessed for this long",
					},
					&cli.BoolFlag{
						Name:    "ngrok",
						Usage:   "Enable ngrok tunnel",
						Sources: cli.EnvVars("NGROK_ENABLED"),
					},
					&cli.StringFlag{
						Name:    "ngrok-auth",
						Usage:   "Ngrok auth token",
						Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "ngrok-domain",
						Usage:   "Custom ngrok domain (optional)",
						Sources: cli.EnvVars("NGROK_DOMAIN"),
					},
				),
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server",
				Flags: withFlags(serviceFlags,
					&cli.StringFlag{
						Name:    "api-url",
						Value:   "http://localhost:8080",
						Usage:   "REST API to proxy; an internal server is started when it is unreachable",
						Sources: cli.EnvVars("SNAKE_API_URL"),
					},
				),
				Action: runMCP,
			},
			{
				Name:  "play",
				Usage: "Play in the terminal",
				Flags: withFlags(levelFlags,
					&cli.StringFlag{
						Name:  "glyphs",
						Value: "ascii",
						Usage: "Board glyphs (ascii, emoji)",
					},
				),
				Action: runPlay,
			},
			{
				Name:  "levels",
				Usage: "List the available levels",
				Flags: withFlags(levelFlags,
					&cli.BoolFlag{
						Name:  "preview",
						Usage: "Print the starting board of each level",
					},
				),
				Action: runLevels,
			},
		},
	}
}

// withFlags returns a fresh slice so commands never share flag storage
func withFlags(base []cli.Flag, extra ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, base...), extra...)
}

// setupLogging configures the global zerolog logger. A terminal gets the
// console writer, anything else gets JSON lines.
func setupLogging(out io.Writer, level string, debug bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// openLevels opens the level directory. When the directory was not chosen
// explicitly and does not exist, only the built-in levels are served.
func openLevels(cmd *cli.Command) (*config.Manager, error) {
	dir := cmd.String("levels-dir")
	if !cmd.IsSet("levels-dir") {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Debug().Str("dir", dir).Msg("Level directory not found, using built-in levels")
			dir = ""
		}
	}
	return config.NewManager(dir)
}

// services holds everything a server needs, wired together
type services struct {
	levels      *config.Manager
	sessions    *session.Manager
	persistence *session.FilePersistence
	results     scores.Store
	hub         *websocket.Hub
	game        service.GameService
}

// initializeServices wires the level, session and result stores into the game
// service and the websocket hub. The hub is not running yet.
func initializeServices(levels *config.Manager, sessionsDir, scoresDB string) (*services, error) {
	s := &services{levels: levels}

	if sessionsDir != "" {
		persistence, err := session.NewFilePersistence(sessionsDir, levels)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		s.persistence = persistence
		s.sessions = session.NewManagerWithPersistence(persistence)
		if err := s.sessions.LoadPersistedSessions(); err != nil {
			log.Warn().Err(err).Msg("Failed to load persisted sessions")
		}
	} else {
		s.sessions = session.NewManager()
	}

	if scoresDB != "" {
		store, err := scores.OpenSQLite(scoresDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open scores database: %w", err)
		}
		s.results = store
	} else {
		s.results = scores.NewMemoryStore()
	}

	s.hub = websocket.NewHub(func(ctx context.Context, sessionID string, key input.Key) error {
		_, err := s.game.SendKey(ctx, sessionID, key)
		return err
	})
	s.game = service.NewGameService(s.sessions, levels,
		service.WithResults(s.results),
		service.WithBroadcaster(s.hub),
	)

	return s, nil
}

// Close stops every running game, saves sessions and closes the result store
func (s *services) Close() {
	if n := s.sessions.StopAll(); n > 0 {
		log.Info().Int("count", n).Msg("Stopped running games")
	}
	if err := s.sessions.SaveAllSessions(); err != nil {
		log.Warn().Err(err).Msg("Failed to save sessions")
	}
	if err := s.results.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close scores store")
	}
}

// newRouter mounts the API at the root and the MCP JSON-RPC endpoint at /mcp
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Error().Err(err).Msg("Failed to write MCP response")
		}
	})
	return router
}

// runServe runs the HTTP server, and the ngrok tunnel when enabled, until ctx
// is cancelled.
func runServe(ctx context.Context, cmd *cli.Command) error {
	levels, err := openLevels(cmd)
	if err != nil {
		return err
	}
	svc, err := initializeServices(levels, cmd.String("sessions-dir"), cmd.String("scores-db"))
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := net.JoinHostPort(cmd.String("host"), fmt.Sprint(cmd.Int("port")))
	mcpClient := mcp.NewClient("http://" + addr)
	router := newRouter(api.NewServer(svc.game, svc.hub), mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		sessionCleanupRoutine(ctx, svc.sessions, time.Hour, cmd.Duration("session-ttl"))
		return nil
	})
	if svc.persistence != nil {
		g.Go(func() error {
			filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, 5*time.Second)
			return nil
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Str("version", Version).Msg("HTTP server listening")
		log.Info().Msgf("REST API: http://%s/api", addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Info().Msgf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if cmd.Bool("ngrok") {
		g.Go(func() error {
			serveNgrok(ctx, router, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"))
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server stopped")
	return err
}

// serveNgrok exposes handler through an ngrok tunnel until ctx is cancelled.
// Tunnel failures are logged and leave the local server running.
func serveNgrok(ctx context.Context, handler http.Handler, authToken, domain string) {
	if authToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Info().Str("url", ngrokURL).Msg("Ngrok tunnel established")
	log.Info().Msgf("  REST API (ngrok): %s/api", ngrokURL)
	log.Info().Msgf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Info().Msgf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Info().Int("count", removed).Msg("Cleaned up expired sessions")
			}
		}
	}
}

// filesystemSyncRoutine drops sessions from memory once their files are
// deleted from the sessions directory.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruneDeletedSessions(manager, persistence); pruned > 0 {
				log.Info().Int("count", pruned).Msg("Filesystem sync: pruned orphaned sessions from memory")
			}
		}
	}
}

func pruneDeletedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Debug().Str("session", sess.ID).Msg("Pruned session (file deleted)")
		}
	}
	return pruned
}

// runMCP serves MCP over stdio. It proxies the API at --api-url when that
// answers, otherwise it starts an internal API on a loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := strings.TrimRight(cmd.String("api-url"), "/")
	log.Info().Str("url", baseURL).Msg("Checking for external API server")

	if !apiAvailable(ctx, baseURL) {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		levels, err := openLevels(cmd)
		if err != nil {
			return err
		}
		svc, err := initializeServices(levels, cmd.String("sessions-dir"), cmd.String("scores-db"))
		if err != nil {
			return err
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go svc.hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		log.Info().Str("url", baseURL).Msg("Internal HTTP server started")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Str("api", baseURL).Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a snake API answers its health check
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runPlay plays one game in the terminal
func runPlay(ctx context.Context, cmd *cli.Command) error {
	glyphs, err := board.GlyphsByName(cmd.String("glyphs"))
	if err != nil {
		return err
	}
	levels, err := openLevels(cmd)
	if err != nil {
		return err
	}

	return terminal.Play(ctx, harness.NewLocalEngine(levels), os.Stdin, os.Stdout, terminal.WithGlyphs(glyphs))
}

// runLevels prints the level catalogue
func runLevels(ctx context.Context, cmd *cli.Command) error {
	levels, err := openLevels(cmd)
	if err != nil {
		return err
	}
	return printLevels(os.Stdout, levels, cmd.Bool("preview"))
}

func printLevels(out io.Writer, levels *config.Manager, preview bool) error {
	infos, err := levels.ListLevels()
	if err != nil {
		return err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	for _, info := range infos {
		source := "file"
		if info.Builtin {
			source = "built-in"
		}
		fmt.Fprintf(out, "- %s: %dx%d, %dms per step (%s)\n", info.ID, info.Width, info.Height, info.PeriodMs, source)
	}

	if !preview {
		return nil
	}

	eng := harness.NewLocalEngine(levels)
	eng.Init()
	previews, err := harness.NewChooser(eng, board.ASCII).Previews()
	if err != nil {
		return err
	}
	for _, p := range previews {
		fmt.Fprintf(out, "\n=== %s ===\n%s", p.Name, p.Board)
	}
	return nil
}
