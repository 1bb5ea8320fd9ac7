package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stackmill/upshift/pkg/command"
	"github.com/stackmill/upshift/pkg/config"
	"github.com/stackmill/upshift/pkg/journal"
	"github.com/stackmill/upshift/pkg/log"
	"github.com/stackmill/upshift/pkg/session"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Status line styles. These are operator-facing only: the machine-readable
// signal of a run is the process exit status.
var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleFail = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

var (
	cfgFile    string
	logLevel   string
	jsonOutput bool
	releaseVer string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleFail.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "upshift",
	Short: "Upshift - upgrade and rollback tool for self-hosted installations",
	Long: `Upshift moves a running application installation from one major
version to another, or restores it to the last known-good snapshot.

Every upgrade is bracketed by a filesystem + database snapshot and a
maintenance window; a failed upgrade never leaves the installation in a
state worse than "recoverable from backup".`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{
			Level:      log.Level(logLevel),
			JSONOutput: jsonOutput,
		})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Upshift version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON log output instead of console")

	upgradeCmd.Flags().StringVar(&releaseVer, "release", "", "release version to fetch (overrides settings)")

	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(historyCmd)
}

// openJournal opens the session journal. The journal is advisory: when it
// cannot be opened the session runs without history rather than refusing.
func openJournal(settings *config.Settings) (*journal.Store, session.Recorder) {
	store, err := journal.Open(settings.DataDir)
	if err != nil {
		fmt.Println(styleWarn.Render("! session journal unavailable: " + err.Error()))
		return nil, nil
	}
	return store, store
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <install_path> [db_name]",
	Short: "Upgrade an installation to the configured release",
	Long: `Upgrade snapshots the installation (filesystem + database dump),
enables maintenance mode, replaces the release-owned directories from the
versioned artifact, reinstalls dependencies, migrates the schema and
normalizes permissions before re-opening the site.

On failure the session aborts immediately, maintenance stays enabled and the
snapshot is left in place for "upshift rollback".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if releaseVer != "" {
			settings.Version = releaseVer
		}

		cfg := session.Config{
			// Cleaned so a trailing slash from shell completion cannot shift
			// the snapshot path or the archive extraction root.
			Target:   filepath.Clean(args[0]),
			Settings: settings,
		}
		if len(args) == 2 {
			cfg.DBName = args[1]
		}

		store, rec := openJournal(settings)
		if store != nil {
			defer store.Close()
		}

		sess := session.NewUpgrade(cfg, command.NewExecRunner(), rec)
		if err := sess.Run(cmd.Context()); err != nil {
			return err
		}

		fmt.Println(styleOK.Render("✓ Upgrade completed"))
		fmt.Println(styleWarn.Render("! Snapshot kept at " + cfg.Target + "-backup; remove it once the release is verified"))
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <install_path>",
	Short: "Restore an installation from its last snapshot",
	Long: `Rollback restores the installation tree from <install_path>-backup,
reinstalls the dependency set and clears the application caches. It fails
without touching anything when no snapshot exists.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cfg := session.Config{
			Target:   filepath.Clean(args[0]),
			Settings: settings,
		}

		store, rec := openJournal(settings)
		if store != nil {
			defer store.Close()
		}

		sess := session.NewRollback(cfg, command.NewExecRunner(), rec)
		if err := sess.Run(cmd.Context()); err != nil {
			return err
		}

		fmt.Println(styleOK.Render("✓ Rollback completed"))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded upgrade and rollback sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		store, err := journal.Open(settings.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.List()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No sessions recorded.")
			return nil
		}

		for _, r := range recs {
			last := "-"
			if n := len(r.Transitions); n > 0 {
				last = r.Transitions[n-1].State
			}
			line := fmt.Sprintf("%s  %-8s  %-28s  %s",
				r.StartedAt.Format("2006-01-02 15:04:05"), r.Kind, r.Target, last)
			switch {
			case r.Succeeded():
				fmt.Println(styleOK.Render(line))
			case r.Interrupted():
				fmt.Println(styleWarn.Render(line + "  (interrupted)"))
			default:
				fmt.Println(styleFail.Render(line + "  (failed at " + r.FailedStage + ": " + r.Err + ")"))
			}
		}
		return nil
	},
}
