package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/snakegame/game/config"
	"github.com/wricardo/mcp-training/snakegame/game/engine"
	"github.com/wricardo/mcp-training/snakegame/game/harness"
	"github.com/wricardo/mcp-training/snakegame/game/input"
	"github.com/wricardo/mcp-training/snakegame/game/service"
)

func newTestSession(t *testing.T, levels *config.Manager, id, levelID string) *service.Session {
	t.Helper()
	level, err := levels.LoadLevel(levelID)
	if err != nil {
		t.Fatalf("Failed to load level: %v", err)
	}
	game, err := engine.NewGame(level)
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	session := &service.Session{
		ID:        id,
		LevelID:   levelID,
		Level:     level,
		Game:      harness.NewGameHandle(game),
		Keys:      input.NewListener(),
		CreatedAt: time.Now(),
	}
	session.Touch()
	return session
}

func TestFilePersistence(t *testing.T) {
	tempDir := t.TempDir()

	levels, err := config.NewManager("")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}

	persistence, err := NewFilePersistence(tempDir, levels)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	session := newTestSession(t, levels, "test1", "snake2")

	t.Run("Save and Load Session", func(t *testing.T) {
		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}
		if !persistence.Exists("test1") {
			t.Error("Session file should exist after save")
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.ID != session.ID {
			t.Errorf("Expected ID %s, got %s", session.ID, loaded.ID)
		}
		if loaded.LevelID != "snake2" {
			t.Errorf("Expected level snake2, got %s", loaded.LevelID)
		}
		if loaded.Game.Raw().Head() != session.Game.Raw().Head() {
			t.Errorf("Expected head %v, got %v", session.Game.Raw().Head(), loaded.Game.Raw().Head())
		}
	})

	t.Run("Save State Changes", func(t *testing.T) {
		session.Keys.HandleCode(input.CodeRight)
		session.Game.Tick(engine.Right)
		session.Game.Tick(engine.Right)

		if err := persistence.Save(session); err != nil {
			t.Fatalf("Failed to save session: %v", err)
		}

		loaded, err := persistence.Load("test1")
		if err != nil {
			t.Fatalf("Failed to load session: %v", err)
		}
		if loaded.Keys.Direction() != engine.Right {
			t.Errorf("Expected restored direction right, got %v", loaded.Keys.Direction())
		}
		got, want := loaded.Game.Raw(), session.Game.Raw()
		if got.Tick != want.Tick || got.Head() != want.Head() || len(got.Snake) != len(want.Snake) {
			t.Errorf("Expected restored snapshot %+v, got %+v", want, got)
		}

		// Both games continue identically
		a := session.Game.Tick(engine.Up)
		b := loaded.Game.Tick(engine.Up)
		if a.Snake[len(a.Snake)-1] != b.Snake[len(b.Snake)-1] {
			t.Errorf("Expected games to stay in step, got %v and %v", a.Snake, b.Snake)
		}
	})

	t.Run("List All Sessions", func(t *testing.T) {
		persistence.Save(newTestSession(t, levels, "test2", "snake1"))
		os.WriteFile(filepath.Join(tempDir, "readme.txt"), []byte("x"), 0644)

		ids, err := persistence.ListAll()
		if err != nil {
			t.Fatalf("Failed to list sessions: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("Expected 2 sessions, got %d: %v", len(ids), ids)
		}
	})

	t.Run("Delete Session", func(t *testing.T) {
		if err := persistence.Delete("test2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists("test2") {
			t.Error("Session should not exist after delete")
		}
		if err := persistence.Delete("test2"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Load Non-existent Session", func(t *testing.T) {
		if _, err := persistence.Load("missing"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Load Corrupt Session", func(t *testing.T) {
		os.WriteFile(filepath.Join(tempDir, "bad1.json"), []byte("{not json"), 0644)
		if _, err := persistence.Load("bad1"); err == nil {
			t.Error("Expected error for corrupt session file")
		}
	})

	t.Run("Load Session With Unknown Level", func(t *testing.T) {
		os.WriteFile(filepath.Join(tempDir, "bad2.json"),
			[]byte(`{"id":"bad2","level_id":"gone","game_state":{"body":[{"x":0,"y":0}]}}`), 0644)
		if _, err := persistence.Load("bad2"); err == nil {
			t.Error("Expected error for unknown level")
		}
	})
}
