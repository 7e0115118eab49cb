package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mindclone/mindclone/internal/billing"
	"github.com/mindclone/mindclone/internal/chat"
	"github.com/mindclone/mindclone/internal/config"
	"github.com/mindclone/mindclone/internal/curate"
	"github.com/mindclone/mindclone/internal/database"
	"github.com/mindclone/mindclone/internal/llm"
	"github.com/mindclone/mindclone/internal/search"
	"github.com/mindclone/mindclone/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mindclone",
	Short:   "Personal AI clones with curated news digests",
	Long:    "Mindclone hosts personal AI clones: chat grounded in a per-user knowledge base, plus an hourly batch that curates news digests around each user's interests.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(curateCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mindclone", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/mindclone/",
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
		fmt.Println("Edit it to configure feeds, API keys, and billing.")
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		llmClient := llm.NewClient(cfg.Chat)
		billingClient := billing.NewClient(cfg.Billing)
		curator := curate.New(db, search.NewSearcher(cfg.Sources), cfg.Curation)

		logIntegration("Anthropic", llmClient.IsConfigured())
		logIntegration("Stripe", billingClient.IsConfigured())
		if cfg.SchedulerToken() == "" {
			log.Printf("Scheduler token not set; curation endpoints are disabled")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(db, cfg, chat.New(db, llmClient), billingClient, curator)
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Run(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (defaults to config)")
}

func logIntegration(name string, configured bool) {
	if configured {
		log.Printf("%s configured", name)
	} else {
		log.Printf("%s not configured; related endpoints will refuse requests", name)
	}
}

// --- curate command ---

var (
	curateHandle string
	curateDryRun bool
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Run the news curation batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		curator := curate.New(db, search.NewSearcher(cfg.Sources), cfg.Curation)
		ctx := context.Background()

		if curateHandle != "" {
			return curateOne(ctx, db, curator)
		}
		if curateDryRun {
			return fmt.Errorf("--dry-run requires --user")
		}

		rec, err := curator.RunBatch(ctx)
		if rec != nil {
			printRun(rec)
		}
		return err
	},
}

func init() {
	curateCmd.Flags().StringVar(&curateHandle, "user", "", "Curate a single user by handle")
	curateCmd.Flags().BoolVar(&curateDryRun, "dry-run", false, "Build the digest without delivering it (requires --user)")
}

func curateOne(ctx context.Context, db *database.DB, curator *curate.Curator) error {
	user, err := db.GetUserByHandle(curateHandle)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %q not found", curateHandle)
	}

	if curateDryRun {
		preview, err := curator.Preview(ctx, user.ID)
		if err != nil {
			return err
		}
		rendered, err := glamour.Render(preview, "auto")
		if err != nil {
			fmt.Println(preview)
			return nil
		}
		fmt.Print(rendered)
		return nil
	}

	result := curator.RunUser(ctx, user.ID)
	switch result.Status {
	case curate.StatusSuccess:
		fmt.Printf("Delivered %d article(s) to %s (avg relevance %.1f, %dms)\n",
			result.ArticlesSent, curateHandle, result.AvgScore, result.ProcessingMs)
	case curate.StatusSkipped:
		fmt.Printf("Skipped %s: %s\n", curateHandle, result.Reason)
	default:
		if result.RetriesExhausted {
			fmt.Printf("Giving up on %s after retries.\n", curateHandle)
		}
		return result.Err
	}
	return nil
}

func printRun(rec *database.RunRecord) {
	fmt.Println("\nCuration complete:")
	fmt.Printf("  Status: %s\n", rec.Status)
	fmt.Printf("  Users: %d selected, %d delivered, %d skipped, %d errored\n",
		rec.UsersSelected, rec.UsersSucceeded, rec.UsersSkipped, rec.UsersErrored)
	fmt.Printf("  Articles sent: %d\n", rec.ArticlesSent)
	if rec.ArticlesSent > 0 {
		fmt.Printf("  Avg relevance: %.1f\n", rec.AvgRelevance)
	}
	fmt.Printf("  Duration: %dms\n", rec.DurationMs)
	for _, e := range rec.Errors {
		fmt.Printf("  user %d: %s\n", e.UserID, e.Error)
	}
}

// --- users command ---

var (
	userEmail string
	userName  string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add [handle]",
	Short: "Create an account and print its API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		token := uuid.NewString()
		var name, email *string
		if userName != "" {
			name = &userName
		}
		if userEmail != "" {
			email = &userEmail
		}

		id, err := db.CreateUser(args[0], name, email, &token)
		if err != nil {
			return err
		}
		fmt.Printf("Created user [%d] %s\n", id, args[0])
		fmt.Printf("API token: %s\n", token)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := db.ListUsers()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users yet. Add one with: mindclone users add <handle>")
			return nil
		}

		for _, u := range users {
			active := "never active"
			if u.LastActiveAt != nil {
				active = "last active " + *u.LastActiveAt
			}
			visibility := ""
			if u.Public {
				visibility = " (public)"
			}
			fmt.Printf("  [%d] %s%s, %s\n", u.ID, u.Handle, visibility, active)
		}
		return nil
	},
}

func init() {
	usersAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	usersAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
}

// --- status command ---

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

		fmt.Printf("Users: %d\n", stats.Users)
		fmt.Println("\nAssistant:")
		fmt.Printf("  Messages: %d\n", stats.Messages)
		fmt.Printf("  Knowledge items: %d\n", stats.KnowledgeItems)
		fmt.Println("\nCuration:")
		fmt.Printf("  Seen articles: %d\n", stats.SeenArticles)
		fmt.Printf("  Runs recorded: %d\n", stats.CurationRuns)
		if stats.LastRun != nil {
			r := stats.LastRun
			fmt.Printf("  Last run: %s %s (%d/%d users, %d articles)\n",
				r.StartedAt, r.Status, r.UsersSucceeded, r.UsersSelected, r.ArticlesSent)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "mindclone.db")
	return database.Open(dbPath)
}
