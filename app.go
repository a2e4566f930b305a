package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"markestedt/keyblocker/audio"
	"markestedt/keyblocker/config"
	"markestedt/keyblocker/keyboard"
	"markestedt/keyblocker/platform"
	"markestedt/keyblocker/settings"
	"markestedt/keyblocker/singleinstance"
	"markestedt/keyblocker/storage"
	"markestedt/keyblocker/systray"
)

// App wires the blocker to its settings file, history, chime and tray
type App struct {
	cfg    *config.Config
	noTray bool

	lock    *singleinstance.Lock
	file    *settings.File
	blocker *keyboard.Blocker
	db      *storage.DB
	history *storage.Recorder
	chime   *audio.Chime
}

// NewApp prepares every collaborator; nothing is intercepted until Run
func NewApp(cfg *config.Config, noTray bool) (*App, error) {
	dir, err := cfg.SettingsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings directory: %w", err)
	}

	lock, err := singleinstance.TryLock(dir)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, noTray: noTray, lock: lock}

	a.file, err = settings.NewFile(dir)
	if err != nil {
		a.Close()
		return nil, err
	}
	slog.Info("Settings file", "path", a.file.Path())

	a.blocker = keyboard.New(platform.NewEventTap(), a.file)

	if cfg.History.Enabled {
		if err := a.openHistory(dir); err != nil {
			// History is optional; the blocker works without it.
			slog.Warn("History disabled", "error", err)
		}
	}

	if cfg.Chime.Enabled {
		chime, err := audio.NewChime(cfg.Chime.Volume)
		if err != nil {
			slog.Warn("Chime disabled", "error", err)
		} else {
			a.chime = chime
			a.blocker.Subscribe(chime)
		}
	}

	return a, nil
}

func (a *App) openHistory(dir string) error {
	db, err := storage.Open(dir)
	if err != nil {
		return err
	}

	if days := a.cfg.History.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		if n, err := db.PruneBefore(cutoff); err != nil {
			slog.Warn("Failed to prune history", "error", err)
		} else if n > 0 {
			slog.Info("Pruned history", "removed", n, "retention_days", days)
		}
	}

	a.db = db
	a.history = storage.NewRecorder(db, uuid.NewString())
	a.blocker.Subscribe(a.history)
	return nil
}

// Run starts interception and blocks until ctx is done or the user quits
// from the tray
func (a *App) Run(ctx context.Context) error {
	if err := a.blocker.Start(); err != nil {
		if !errors.Is(err, keyboard.ErrAlreadyRunning) {
			return err
		}
		slog.Warn("Keyboard blocker already running")
	}
	defer func() {
		if err := a.blocker.Stop(); err != nil {
			slog.Error("Failed to stop keyboard blocker", "error", err)
		}
	}()

	a.blocker.SetOnRecorded(func(s keyboard.Shortcut) {
		slog.Info("New shortcut recorded", "shortcut", s.String())
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Settings.Watch {
		err := settings.Watch(ctx, a.file, a.blocker.ApplySettings)
		if err != nil {
			slog.Warn("Settings watcher disabled", "error", err)
		}
	}

	slog.Info("KeyBlocker started",
		"shortcut", a.blocker.Shortcut().String(),
		"shortcut_enabled", a.blocker.IsShortcutEnabled())

	if a.noTray || !a.cfg.Tray.Enabled {
		<-ctx.Done()
		return nil
	}

	tray := systray.NewManager(a.blocker, nil)
	a.blocker.Subscribe(tray)

	go func() {
		select {
		case <-ctx.Done():
			tray.Stop()
		case <-tray.WaitForQuit():
			cancel()
		}
	}()

	// Tray runs on the main thread until Quit.
	tray.Run()
	return nil
}

// Close releases the history database, audio device and instance lock
func (a *App) Close() {
	if a.history != nil {
		a.history.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close history database", "error", err)
		}
	}
	if a.chime != nil {
		a.chime.Close()
	}
	if err := a.lock.Release(); err != nil {
		slog.Warn("Failed to release instance lock", "error", err)
	}
}
