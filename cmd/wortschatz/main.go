package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conorfennell/wortschatz/internal/config"
	"github.com/conorfennell/wortschatz/internal/scheduler"
	"github.com/conorfennell/wortschatz/internal/session"
	"github.com/conorfennell/wortschatz/internal/storage"
	appsync "github.com/conorfennell/wortschatz/internal/sync"
	"github.com/conorfennell/wortschatz/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("wortschatz", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to a yaml config file")
	flags.String("db-path", config.DefaultDBPath, "Path to the SQLite database file")
	flags.String("listen-addr", config.DefaultListenAddr, "Address for the web API")
	flags.String("repos-dir", config.DefaultReposDir, "Directory for mirrored git deck sources")
	flags.String("user", config.DefaultUser, "User the CLI acts as")
	flags.String("language", config.DefaultLanguage, "Language code to study")

	addSource := flags.String("add-source", "", "Register a deck source (directory or git URL) and exit")
	runSync := flags.Bool("sync", false, "Reconcile all deck sources into the store")
	serve := flags.Bool("serve", false, "Start the web API")
	review := flags.Bool("review", false, "Run a terminal review session")
	count := flags.Bool("count", false, "Print the number of stored cards")

	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	engine, err := scheduler.NewEngine(cfg.Policy())
	if err != nil {
		log.Fatalf("Failed to build scheduling engine: %v", err)
	}

	ctx := context.Background()

	switch {
	case *addSource != "":
		sourceType := web.SourceType(*addSource)
		if _, err := db.InsertSource(ctx, *addSource, sourceType); err != nil {
			log.Fatalf("Failed to add source: %v", err)
		}
		fmt.Printf("Added %s source: %s\n", sourceType, *addSource)

	case *runSync:
		if err := appsync.Run(ctx, db, cfg.User, cfg.ReposDir); err != nil {
			log.Fatalf("Sync failed: %v", err)
		}

	case *count:
		n, err := db.Count(ctx, cfg.User, cfg.Language)
		if err != nil {
			log.Fatalf("Failed to count cards: %v", err)
		}
		fmt.Printf("%d cards stored for %s/%s\n", n, cfg.User, cfg.Language)

	case *review:
		if err := runReview(ctx, db, engine, cfg); err != nil {
			log.Fatalf("Review session failed: %v", err)
		}

	case *serve:
		server := web.NewServer(db, engine, cfg)
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
			log.Fatalf("Server failed: %v", err)
		}

	default:
		fmt.Println("Usage of wortschatz:")
		flags.PrintDefaults()
	}
}

// runReview drives one study session on the terminal: ENTER flips the
// current card, then a/h/g/e grades it.
func runReview(ctx context.Context, db *storage.DB, engine *scheduler.Engine, cfg config.Config) error {
	sess, err := session.New(session.Config{Store: db, Engine: engine})
	if err != nil {
		return err
	}
	if err := sess.Start(ctx, cfg.User, cfg.Language); err != nil {
		return err
	}

	if sess.State() == session.Empty {
		fmt.Println("Nothing due. Come back later.")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for sess.State() == session.Active {
		snap := sess.Snapshot()
		card := snap.Card
		fmt.Printf("\n[%d/%d] %s\n", snap.Graded+1, snap.Total, card.Term)
		if card.Example != "" {
			fmt.Printf("    %s\n", card.Example)
		}
		fmt.Print("(press ENTER to flip) ")
		if _, err := reader.ReadString('\n'); err != nil {
			return err
		}
		if err := sess.Flip(); err != nil {
			return err
		}

		fmt.Printf("  → %s\n", card.Translation)
		if card.ExampleTranslation != "" {
			fmt.Printf("    %s\n", card.ExampleTranslation)
		}

		rating, err := readRating(reader)
		if err != nil {
			return err
		}
		res, err := sess.Grade(ctx, rating)
		if err != nil {
			fmt.Printf("Could not save your review: %v. Try again.\n", err)
			continue
		}
		if res.IntervalDays() > 0 {
			fmt.Printf("  next review in %d day(s)\n", res.IntervalDays())
		} else {
			fmt.Printf("  back again in %s\n", res.Interval)
		}
	}

	snap := sess.Snapshot()
	fmt.Printf("\nSession complete: %d cards reviewed.\n", snap.Graded)
	return nil
}

func readRating(reader *bufio.Reader) (scheduler.Rating, error) {
	for {
		fmt.Print("grade [a]gain / [h]ard / [g]ood / [e]asy: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "again":
			return scheduler.Again, nil
		case "h", "hard":
			return scheduler.Hard, nil
		case "g", "good":
			return scheduler.Good, nil
		case "e", "easy":
			return scheduler.Easy, nil
		default:
			fmt.Println("Unrecognized rating.")
		}
	}
}
