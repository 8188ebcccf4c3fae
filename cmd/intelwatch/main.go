package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/IntelWatch/internal/brief"
	"github.com/TobiSchelling/IntelWatch/internal/classify"
	"github.com/TobiSchelling/IntelWatch/internal/config"
	"github.com/TobiSchelling/IntelWatch/internal/crawl"
	"github.com/TobiSchelling/IntelWatch/internal/database"
	"github.com/TobiSchelling/IntelWatch/internal/insight"
	"github.com/TobiSchelling/IntelWatch/internal/llm"
	"github.com/TobiSchelling/IntelWatch/internal/logger"
	"github.com/TobiSchelling/IntelWatch/internal/mail"
	"github.com/TobiSchelling/IntelWatch/internal/pipeline"
	"github.com/TobiSchelling/IntelWatch/internal/schedule"
	"github.com/TobiSchelling/IntelWatch/internal/server"
	"github.com/TobiSchelling/IntelWatch/internal/workflow"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logr       *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if logr != nil {
		_ = logr.Sync()
	}
}

var rootCmd = &cobra.Command{
	Use:     "intelwatch",
	Short:   "Competitive intelligence for tourism and hospitality",
	Long:    "IntelWatch monitors competitor sources, extracts business events, and turns them into daily briefs, forecasts, and tasks.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys commonly live in a local .env during development.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		env := cfg.Logging.Environment
		if verbose {
			env = "development"
		}
		logr, err = logger.New(env)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		zap.ReplaceGlobals(logr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(teamCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("intelwatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/intelwatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources, email, and the reasoning provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Sources:")
		fmt.Printf("  Total: %d\n", stats.TotalSources)
		fmt.Printf("  Active: %d\n", stats.ActiveSources)
		fmt.Println("\nContent:")
		fmt.Printf("  Items tracked: %d\n", stats.TotalItems)
		fmt.Printf("  Events extracted: %d\n", stats.TotalEvents)
		fmt.Println("\nOutput:")
		fmt.Printf("  Runs: %d\n", stats.TotalRuns)
		fmt.Printf("  Briefs: %d\n", stats.TotalBriefs)
		fmt.Println("\nWorkflow:")
		fmt.Printf("  Pending approvals: %d\n", stats.PendingApprovals)
		fmt.Printf("  Open action items: %d\n", stats.OpenActionItems)

		if run, err := db.GetLatestRun(); err == nil && run != nil {
			fmt.Printf("\nLast run: %s (%s)\n", run.StartedAt, run.Status)
		}
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one intelligence cycle: fetch -> classify -> brief -> insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := newPipeline(db)
		fmt.Println("Starting intelligence run...")

		run, err := pipe.Execute(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nRun complete:")
		fmt.Printf("  Status: %s\n", run.Status)
		fmt.Printf("  Sources: %d ok, %d failed\n", run.SourcesOK, run.SourcesFailed)
		fmt.Printf("  Items: %d new, %d updated, %d unchanged\n", run.ItemsNew, run.ItemsUpdated, run.ItemsUnchanged)
		fmt.Printf("  Events created: %d\n", run.EventsCreated)
		fmt.Printf("  Emails sent: %d\n", run.EmailsSent)
		fmt.Println("\nRun 'intelwatch serve' to browse events, briefs, and insights.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and schedule loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Logging.Environment == "production" && !verbose {
			gin.SetMode(gin.ReleaseMode)
		}

		pipe := newPipeline(db)
		srv := server.New(db, pipe, workflow.New(db, logr), logr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var sched *schedule.Scheduler
		if cfg.Scheduler.Enabled {
			sched = schedule.New(db, pipe, logr)
			sched.Start(ctx)
			defer sched.Stop()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		fmt.Printf("IntelWatch API at http://localhost:%d/api\n", port)
		fmt.Println("Press Ctrl+C to stop")

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage monitored sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all monitored sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		sources, err := db.GetAllSources()
		if err != nil {
			return err
		}

		if len(sources) == 0 {
			fmt.Println("No sources configured. Add one with: intelwatch sources add")
			fmt.Println("Or load the defaults with: intelwatch sources seed")
			return nil
		}

		fmt.Println("Monitored Sources:")
		fmt.Println()
		for _, s := range sources {
			icon := " "
			if s.Active {
				icon = "*"
			}
			fmt.Printf("  [%s] %s %s (%s)\n", s.ID[:8], icon, s.Name, s.Category)
			fmt.Printf("        %s\n", s.URL)
		}
		return nil
	},
}

var sourceCategory string

var sourcesAddCmd = &cobra.Command{
	Use:   "add [name] [url]",
	Short: "Add a source to monitor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := db.InsertSource(args[0], args[1], sourceCategory)
		if err != nil {
			return err
		}
		fmt.Printf("Added source [%s]: %s\n", source.ID[:8], source.Name)
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := findSource(db, args[0])
		if err != nil {
			return err
		}
		if _, err := db.DeleteSource(source.ID); err != nil {
			return err
		}
		fmt.Printf("Removed source [%s]: %s\n", source.ID[:8], source.Name)
		return nil
	},
}

var sourcesToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a source's active state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := findSource(db, args[0])
		if err != nil {
			return err
		}
		if _, err := db.ToggleSource(source.ID); err != nil {
			return err
		}
		newState := "disabled"
		if !source.Active {
			newState = "enabled"
		}
		fmt.Printf("Source [%s] %s: %s\n", source.ID[:8], source.Name, newState)
		return nil
	},
}

var sourcesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default tourism and hospitality sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := db.SeedDefaultSources()
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d sources.\n", count)
		return nil
	},
}

func init() {
	sourcesAddCmd.Flags().StringVar(&sourceCategory, "category", "other", "Source category (competitor, industry_news, market_report)")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
	sourcesCmd.AddCommand(sourcesToggleCmd)
	sourcesCmd.AddCommand(sourcesSeedCmd)
}

// findSource resolves a source by full ID or unambiguous ID prefix.
func findSource(db *database.DB, id string) (*database.Source, error) {
	source, err := db.GetSource(id)
	if err != nil {
		return nil, err
	}
	if source != nil {
		return source, nil
	}

	sources, err := db.GetAllSources()
	if err != nil {
		return nil, err
	}
	var match *database.Source
	for i := range sources {
		if len(id) >= 4 && strings.HasPrefix(sources[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("source ID prefix %q is ambiguous", id)
			}
			match = &sources[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("source %s not found", id)
	}
	return match, nil
}

// --- team command ---

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage team members for task assignment",
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List team members",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		members, err := db.GetTeamMembers()
		if err != nil {
			return err
		}

		if len(members) == 0 {
			fmt.Println("No team members. Add one with: intelwatch team add")
			return nil
		}

		fmt.Println("Team:")
		fmt.Println()
		for _, m := range members {
			icon := " "
			if m.Active {
				icon = "*"
			}
			fmt.Printf("  [%s] %s %s (%s)\n", m.ID[:8], icon, m.Name, m.RoleType)
			if m.Email != nil && *m.Email != "" {
				fmt.Printf("        %s\n", *m.Email)
			}
		}
		return nil
	},
}

var (
	teamRole  string
	teamTitle string
	teamEmail string
)

var teamAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a team member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var title, email *string
		if teamTitle != "" {
			title = &teamTitle
		}
		if teamEmail != "" {
			email = &teamEmail
		}

		member, err := db.InsertTeamMember(args[0], title, email, teamRole)
		if err != nil {
			return err
		}
		fmt.Printf("Added team member [%s]: %s (%s)\n", member.ID[:8], member.Name, member.RoleType)
		return nil
	},
}

func init() {
	teamAddCmd.Flags().StringVar(&teamRole, "role", "analyst", "Role for task assignment (analyst, executive, marketing, risk)")
	teamAddCmd.Flags().StringVar(&teamTitle, "title", "", "Job title")
	teamAddCmd.Flags().StringVar(&teamEmail, "email", "", "Email address")

	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamAddCmd)
}

// newPipeline assembles the full stack behind one run: fetcher,
// classifier, brief dispatcher, and insight generator.
func newPipeline(db *database.DB) *pipeline.Pipeline {
	provider := llm.CreateProvider(
		cfg.Reasoning.Provider,
		cfg.Reasoning.OllamaModel,
		cfg.Reasoning.OllamaURL,
		cfg.Reasoning.OpenAIModel,
		cfg.Reasoning.APIKeyEnv,
		cfg.Reasoning.MaxTokens,
	)
	fetcher := crawl.NewFetcher(time.Duration(cfg.Crawl.TimeoutSeconds)*time.Second, logr)
	classifier := classify.NewClassifier(provider, logr)

	// A nil *mail.Client must stay a nil interface so the dispatcher
	// falls back to store-only mode.
	var mailer brief.Mailer
	if client := mail.NewClient(cfg.Email, logr); client != nil {
		mailer = client
	}
	dispatcher := brief.NewDispatcher(db, mailer, logr)
	insights := insight.NewGenerator(db, provider, logr)

	return pipeline.New(db, fetcher, classifier, dispatcher, insights, logr)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "intelwatch.db")
	return database.Open(dbPath)
}
