package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"markestedt/keyblocker/config"
	"markestedt/keyblocker/keyboard"
	"markestedt/keyblocker/settings"
	"markestedt/keyblocker/singleinstance"
	"markestedt/keyblocker/storage"
)

var version = "1.2"

type rootOptions struct {
	configPath string
	logLevel   string
	verbose    bool
	noTray     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "keyblocker",
		Short:         "Block keyboard input until an emergency shortcut is pressed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocker(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.toml (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Run without the menu bar icon")

	cmd.AddCommand(
		newShortcutCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the config file and applies the logging flags
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	name := cfg.Log.Level
	if o.logLevel != "" {
		name = o.logLevel
	}
	if o.verbose {
		name = "debug"
	}
	level, err := config.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	setupLogging(level)

	return cfg, nil
}

func runBlocker(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, opts.noTray)
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		return errors.New("KeyBlocker is already running")
	}
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		if errors.Is(err, keyboard.ErrPermissionDenied) {
			return errors.New("KeyBlocker needs accessibility permission to block the keyboard.\n" +
				"Open System Settings > Privacy & Security > Accessibility, enable KeyBlocker " +
				"(or the terminal running it), then start it again")
		}
		return err
	}

	slog.Info("KeyBlocker stopped")
	return nil
}

func newShortcutCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortcut",
		Short: "Show or change the emergency shortcut",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the emergency shortcut",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := opts.loadSettings()
			if err != nil {
				return err
			}
			state := "disabled"
			if s.ShortcutEnabled {
				state = "enabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", s.Shortcut, state)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <combo>",
		Short: "Set the emergency shortcut, e.g. cmd+shift+q",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shortcut, err := keyboard.ParseShortcut(args[0])
			if err != nil {
				return err
			}
			return opts.updateSettings(cmd.OutOrStdout(), func(s *keyboard.Settings) {
				s.Shortcut = shortcut
			})
		},
	}

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Allow the shortcut to unblock the keyboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.updateSettings(cmd.OutOrStdout(), func(s *keyboard.Settings) {
				s.ShortcutEnabled = true
			})
		},
	}

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Ignore the shortcut while blocking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.updateSettings(cmd.OutOrStdout(), func(s *keyboard.Settings) {
				s.ShortcutEnabled = false
			})
		},
	}

	cmd.AddCommand(show, set, enable, disable)
	return cmd
}

func (o *rootOptions) loadSettings() (*settings.File, keyboard.Settings, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, keyboard.Settings{}, err
	}
	dir, err := cfg.SettingsDir()
	if err != nil {
		return nil, keyboard.Settings{}, err
	}
	file, err := settings.NewFile(dir)
	if err != nil {
		return nil, keyboard.Settings{}, err
	}
	s, err := file.Load()
	if err != nil {
		return nil, keyboard.Settings{}, err
	}
	return file, s, nil
}

func (o *rootOptions) updateSettings(out io.Writer, edit func(*keyboard.Settings)) error {
	file, s, err := o.loadSettings()
	if err != nil {
		return err
	}
	edit(&s)
	if err := file.Save(s); err != nil {
		return err
	}
	state := "disabled"
	if s.ShortcutEnabled {
		state = "enabled"
	}
	fmt.Fprintf(out, "Shortcut set to %s (%s)\n", s.Shortcut, state)
	return nil
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print blocking history and statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			dir, err := cfg.SettingsDir()
			if err != nil {
				return err
			}
			db, err := storage.Open(dir)
			if err != nil {
				return err
			}
			defer db.Close()

			return printHistory(cmd.OutOrStdout(), db, time.Now(), days, limit)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to summarize")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent events to list")
	return cmd
}

func printHistory(out io.Writer, db *storage.DB, now time.Time, days, limit int) error {
	since := now.AddDate(0, 0, -days)

	overall, err := db.GetOverallStats(since, now)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Last %d days\n", days)
	fmt.Fprintf(out, "  Blocks:             %s\n", humanize.Comma(int64(overall.Blocks)))
	fmt.Fprintf(out, "  Unblocked by user:  %s\n", humanize.Comma(int64(overall.UserUnblocks)))
	fmt.Fprintf(out, "  Shortcut unblocks:  %s\n", humanize.Comma(int64(overall.ShortcutUnblocks)))
	fmt.Fprintf(out, "  Shortcuts recorded: %s\n", humanize.Comma(int64(overall.Recordings)))
	fmt.Fprintf(out, "  Time blocked:       %s\n", overall.BlockedTime.Round(time.Second))
	if !overall.LastEvent.IsZero() {
		fmt.Fprintf(out, "  Last activity:      %s\n", humanize.RelTime(overall.LastEvent, now, "ago", "from now"))
	}

	daily, err := db.GetDailyStats(since)
	if err != nil {
		return err
	}
	if len(daily) > 0 {
		fmt.Fprintln(out, "\nPer day")
		for _, d := range daily {
			fmt.Fprintf(out, "  %s  blocks=%d shortcut_unblocks=%d recordings=%d\n",
				d.Date, d.Blocks, d.ShortcutUnblocks, d.Recordings)
		}
	}

	if limit <= 0 {
		return nil
	}
	events, err := db.GetEvents(limit, 0)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Fprintln(out, "\nRecent events")
		for _, e := range events {
			detail := e.Cause
			if e.Kind == storage.KindRecord {
				detail = e.Shortcut
			}
			fmt.Fprintf(out, "  %-16s %-8s %s\n",
				humanize.RelTime(e.Timestamp, now, "ago", "from now"), e.Kind, detail)
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "KeyBlocker %s\n", version)
		},
	}
}
