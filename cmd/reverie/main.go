// Package main provides the reverie command line client: submit a journal
// entry for analysis, inspect history and the pattern profile, or clear the
// journal, without going through the worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/halcyonlabs/reverie/internal/analyzer"
	"github.com/halcyonlabs/reverie/internal/config"
	"github.com/halcyonlabs/reverie/internal/store"
	"github.com/halcyonlabs/reverie/pkg/models"
)

// Version is set at build time via ldflags.
var Version = "dev"

// stringSlice collects repeated flag values.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var journalPhotoPaths, spacePhotoPaths stringSlice
	text := flag.String("text", "", "Journal entry text")
	flag.Var(&journalPhotoPaths, "journal-photo", "Path to a journal page photo (repeatable, max 5)")
	flag.Var(&spacePhotoPaths, "space-photo", "Path to a photo of your space (repeatable, max 5)")
	showHistory := flag.Bool("show-history", false, "Print journal history and exit")
	showProfile := flag.Bool("show-profile", false, "Print the pattern profile and exit")
	clearJournal := flag.Bool("clear", false, "Delete all journal history and the profile, then exit")
	dataDir := flag.String("data-dir", "", "Data directory (default: ~/.reverie)")
	backendName := flag.String("store", "", "Storage backend: file or sqlite (default: from settings)")
	model := flag.String("model", "", "Model override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	if *dataDir != "" {
		os.Setenv("REVERIE_DATA_DIR", *dataDir)
	}

	if err := config.EnsureAll(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize data directory")
	}
	cfg := config.Get()
	if *backendName != "" {
		cfg.StoreBackend = *backendName
	}
	if *model != "" {
		cfg.Model = *model
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open journal store")
	}
	defer st.Close()

	switch {
	case *clearJournal:
		if err := st.Clear(); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear journal")
		}
		fmt.Println("Journal cleared.")
		return

	case *showHistory:
		printHistory(st.History())
		return

	case *showProfile:
		printProfile(st.Profile())
		return
	}

	journalPhotos, err := loadPhotos(journalPhotoPaths)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load journal photos")
	}
	spacePhotos, err := loadPhotos(spacePhotoPaths)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load space photos")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	caller := analyzer.NewOpenAICaller(analyzer.OpenAIConfig{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		MaxOutputTokens: int64(cfg.MaxOutputTokens),
	})
	an := analyzer.New(st, caller, cfg)

	fmt.Fprintln(os.Stderr, "Analyzing...")
	result, err := an.Analyze(ctx, analyzer.Input{
		Text:          *text,
		JournalPhotos: journalPhotos,
		SpacePhotos:   spacePhotos,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, analyzer.UserMessage(err))
		os.Exit(1)
	}

	printReport(result)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		backend, err := store.NewSQLiteBackend(store.SQLiteConfig{
			Path:     config.DBPath(),
			MaxConns: cfg.MaxConns,
			WALMode:  true,
		})
		if err != nil {
			return nil, err
		}
		return store.Open(backend), nil
	default:
		return store.Open(store.NewFileBackend(config.StatePath())), nil
	}
}

func loadPhotos(paths []string) ([]models.Photo, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if len(paths) > models.MaxPhotosPerCategory {
		return nil, fmt.Errorf("at most %d photos per category", models.MaxPhotosPerCategory)
	}

	photos := make([]models.Photo, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		photos = append(photos, models.Photo{
			Data: data,
			MIME: http.DetectContentType(data),
		})
	}
	return photos, nil
}

func printHistory(entries []models.JournalEntry) {
	if len(entries) == 0 {
		fmt.Println("No journal entries yet.")
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Printf("[%s]\n", e.Timestamp)
		if e.Text != "" {
			fmt.Println(e.Text)
		}
		if e.JournalPhotoCount > 0 || e.SpacePhotoCount > 0 {
			fmt.Printf("(%d journal photos, %d space photos)\n",
				e.JournalPhotoCount, e.SpacePhotoCount)
		}
		fmt.Println()
	}
}

func printProfile(profile *models.PatternProfile) {
	if profile == nil {
		fmt.Println("No pattern profile yet. Analyze an entry first.")
		return
	}
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render profile")
	}
	fmt.Println(string(data))
}

func printReport(result *models.AnalysisResult) {
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Printf("\n%s\n", title)
		for _, item := range items {
			fmt.Printf("  - %s\n", item)
		}
	}

	fmt.Println(result.Overview)
	section("Emotional patterns", result.EmotionalPatterns)
	section("Environment patterns", result.EnvironmentPatterns)
	section("Behavioral loops", result.BehavioralLoops)
	section("Triggers", result.Triggers)
	section("Recurring themes", result.RecurringThemes)
	if result.CorePursuitsAndWhy != "" {
		fmt.Printf("\nCore pursuits\n  %s\n", result.CorePursuitsAndWhy)
	}
	section("Worth reflecting on", result.ReflectionPrompts)
}
