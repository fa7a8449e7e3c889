// Package sync reconciles registered deck sources with the card store.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/wortschatz/internal/deck"
	"github.com/conorfennell/wortschatz/internal/domain"
	"github.com/conorfennell/wortschatz/internal/gitsource"
	"github.com/conorfennell/wortschatz/internal/storage"
)

// Run iterates over all registered sources and reconciles their decks into
// the store for the given user. Git sources are mirrored under reposDir
// first. Cards already known by (language, term) keep their mastery state;
// cards that disappeared from their source are deleted.
func Run(ctx context.Context, db *storage.DB, userID, reposDir string) error {
	slog.Info("starting sync for all sources", "user", userID)
	sources, err := db.GetAllSources(ctx)
	if err != nil {
		return fmt.Errorf("getting sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("no sources configured; add one with --add-source <path/or/url.git>")
		return nil
	}

	if err := os.MkdirAll(reposDir, os.ModePerm); err != nil {
		return fmt.Errorf("creating repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		deckDir := source.Path
		if source.Type == "git" {
			localRepoPath, err := gitURLToLocalPath(reposDir, source.Path)
			if err != nil {
				slog.Error("cannot determine local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath); err != nil {
				slog.Error("git sync failed", "url", source.Path, "error", err)
				continue
			}
			deckDir = localRepoPath
		}

		if err := reconcileDeckDir(ctx, db, userID, source.ID, deckDir); err != nil {
			slog.Error("reconciliation failed", "path", deckDir, "error", err)
			continue
		}
		if err := db.UpdateSourceLastSynced(ctx, source.ID); err != nil {
			slog.Warn("failed to stamp source as synced", "source_id", source.ID, "error", err)
		}
	}
	slog.Info("sync complete")
	return nil
}

func isDeckFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".tsv")
}

// reconcileDeckDir walks dir for deck files, inserts cards new to the user,
// and deletes cards of this source that no deck mentions anymore.
func reconcileDeckDir(ctx context.Context, db *storage.DB, userID string, sourceID int64, dir string) error {
	found := make(map[string]bool) // language + "\x00" + term
	var parsed, inserted int
	var deckErrors []error

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDeckFile(d.Name()) {
			return nil
		}

		entries, parseErr := deck.ParseFile(path)
		if parseErr != nil {
			deckErrors = append(deckErrors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		language := deck.Language(path)

		for _, entry := range entries {
			parsed++
			found[language+"\x00"+entry.Term] = true

			existing, findErr := db.FindCardByTerm(ctx, userID, language, entry.Term)
			if findErr != nil {
				deckErrors = append(deckErrors, fmt.Errorf("db check for %q: %w", entry.Term, findErr))
				continue
			}
			if existing != nil {
				continue
			}

			card := domain.Card{
				ID:                 uuid.NewString(),
				UserID:             userID,
				Language:           language,
				Term:               entry.Term,
				Translation:        entry.Translation,
				Example:            entry.Example,
				ExampleTranslation: entry.ExampleTranslation,
			}
			if insertErr := db.InsertCard(ctx, card, sourceID); insertErr != nil {
				deckErrors = append(deckErrors, fmt.Errorf("db insert for %q: %w", entry.Term, insertErr))
				continue
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	dbCards, err := db.GetCardsBySourceID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("getting cards for source %d: %w", sourceID, err)
	}

	var orphaned int
	for _, dbCard := range dbCards {
		if dbCard.UserID != userID {
			continue
		}
		if !found[dbCard.Language+"\x00"+dbCard.Term] {
			orphaned++
			if err := db.DeleteCard(ctx, dbCard.ID); err != nil {
				slog.Warn("failed to delete orphaned card", "id", dbCard.ID, "error", err)
			}
		}
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"parsed_entries", parsed,
		"inserted", inserted,
		"orphaned_deleted", orphaned,
		"errors", len(deckErrors),
	)
	for _, e := range deckErrors {
		slog.Warn("deck error", "error", e)
	}
	return nil
}

// gitURLToLocalPath maps a clone URL onto a stable directory under baseDir.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		// scp-style URL: git@host:owner/repo.git
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
