// Package storage implements the SQLite-backed card store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/wortschatz/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection and implements domain.CardStore.
type DB struct {
	conn *sql.DB
}

var _ domain.CardStore = (*DB)(nil)

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `id, user_id, language, term, translation, example,
	example_translation, level, next_due_at, last_reviewed_at, review_count`

func scanCard(row interface{ Scan(...any) error }) (domain.Card, error) {
	var c domain.Card
	var lastReviewed sql.NullTime
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Language,
		&c.Term,
		&c.Translation,
		&c.Example,
		&c.ExampleTranslation,
		&c.Mastery.Level,
		&c.Mastery.NextDueAt,
		&lastReviewed,
		&c.Mastery.ReviewCount,
	)
	if err != nil {
		return domain.Card{}, err
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		c.Mastery.LastReviewedAt = &t
	}
	return c, nil
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	defer rows.Close()
	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card rows: %w", err)
	}
	return cards, nil
}

// InsertCard inserts a new card with an unlearned mastery state: level 0,
// due immediately, never reviewed. A zero sourceID stores NULL.
func (db *DB) InsertCard(ctx context.Context, card domain.Card, sourceID int64) error {
	src := sql.NullInt64{Int64: sourceID, Valid: sourceID != 0}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, user_id, language, term, translation, example,
			example_translation, level, next_due_at, last_reviewed_at, review_count, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, NULL, 0, ?)
	`,
		card.ID,
		card.UserID,
		card.Language,
		card.Term,
		card.Translation,
		card.Example,
		card.ExampleTranslation,
		time.Now(),
		src,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindCard retrieves a card by its ID, or nil if it does not exist.
func (db *DB) FindCard(ctx context.Context, id string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE id = ?
	`, id)
	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// FindCardByTerm retrieves a card by its natural key, or nil if absent.
// Sync uses this to keep mastery state intact across re-imports.
func (db *DB) FindCardByTerm(ctx context.Context, userID, language, term string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ? AND language = ? AND term = ?
	`, userID, language, term)
	c, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %q for %s/%s: %w", term, userID, language, err)
	}
	return &c, nil
}

// DueCards returns the user's due cards for a language, oldest due first.
func (db *DB) DueCards(ctx context.Context, userID, language string, now time.Time) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE user_id = ? AND language = ? AND next_due_at <= ?
		ORDER BY next_due_at ASC
	`, userID, language, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards for %s/%s: %w", userID, language, err)
	}
	return collectCards(rows)
}

// RandomCards returns up to n of the user's cards in random order.
func (db *DB) RandomCards(ctx context.Context, userID, language string, n int) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE user_id = ? AND language = ?
		ORDER BY RANDOM()
		LIMIT ?
	`, userID, language, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query random cards for %s/%s: %w", userID, language, err)
	}
	return collectCards(rows)
}

// UpdateMastery persists a card's new scheduling state.
func (db *DB) UpdateMastery(ctx context.Context, cardID string, state domain.MasteryState) error {
	var lastReviewed sql.NullTime
	if state.LastReviewedAt != nil {
		lastReviewed = sql.NullTime{Time: *state.LastReviewedAt, Valid: true}
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET level = ?, next_due_at = ?, last_reviewed_at = ?, review_count = ?
		WHERE id = ?
	`,
		state.Level,
		state.NextDueAt,
		lastReviewed,
		state.ReviewCount,
		cardID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mastery for card %s: %w", cardID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update for card %s: %w", cardID, err)
	}
	if affected == 0 {
		return fmt.Errorf("card %s does not exist", cardID)
	}
	return nil
}

// Count returns the number of cards stored for the user/language.
func (db *DB) Count(ctx context.Context, userID, language string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards WHERE user_id = ? AND language = ?
	`, userID, language).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards for %s/%s: %w", userID, language, err)
	}
	return n, nil
}

// InsertReviewLog appends one grading event to the review history.
func (db *DB) InsertReviewLog(ctx context.Context, log domain.ReviewLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, rating, level_before, level_after, reviewed_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		log.CardID,
		log.Rating,
		log.LevelBefore,
		log.LevelAfter,
		log.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review log for card %s: %w", log.CardID, err)
	}
	return nil
}

// ReviewLogsForCard returns the card's grading history, oldest first.
func (db *DB) ReviewLogsForCard(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, rating, level_before, level_after, reviewed_at
		FROM review_logs WHERE card_id = ?
		ORDER BY reviewed_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query review logs for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		if err := rows.Scan(&l.CardID, &l.Rating, &l.LevelBefore, &l.LevelAfter, &l.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review log rows: %w", err)
	}
	return logs, nil
}

// Source is a deck origin, either a local directory or a git URL.
type Source struct {
	ID         int64
	Path       string
	Type       string // "local" or "git"
	LastSynced sql.NullTime
}

// InsertSource registers a new deck source and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type)
		VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path, or nil if absent.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, path, type, last_synced
		FROM sources WHERE path = ?
	`, path)
	if err := row.Scan(&s.ID, &s.Path, &s.Type, &s.LastSynced); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all registered deck sources.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, type, last_synced
		FROM sources
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastSynced); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source rows: %w", err)
	}
	return sources, nil
}

// UpdateSourceLastSynced stamps the source with the current time.
func (db *DB) UpdateSourceLastSynced(ctx context.Context, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_synced = ?
		WHERE id = ?
	`, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last synced for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a deck source. Cards imported from it remain.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE cards SET source_id = NULL WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to detach cards from source ID %d: %w", sourceID, err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to delete source ID %d: %w", sourceID, err)
	}
	return nil
}

// GetCardsBySourceID retrieves all cards imported from a specific source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return collectCards(rows)
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM review_logs WHERE card_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete review logs for card %s: %w", id, err)
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}
