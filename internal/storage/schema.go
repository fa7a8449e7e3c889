package storage

const schema = `
-- Vocabulary cards together with their scheduling state. The store is the
-- single writer of durable mastery state.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    language TEXT NOT NULL,
    term TEXT NOT NULL,
    translation TEXT NOT NULL,
    example TEXT NOT NULL DEFAULT '',
    example_translation TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 0,
    next_due_at DATETIME NOT NULL,
    last_reviewed_at DATETIME,
    review_count INTEGER NOT NULL DEFAULT 0,
    source_id INTEGER,

    UNIQUE(user_id, language, term),
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_cards_due
    ON cards(user_id, language, next_due_at);

-- One row per grading event, for statistics and schedule replay.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    rating TEXT NOT NULL,
    level_before INTEGER NOT NULL,
    level_after INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id)
);

-- Deck sources: a local directory of CSV decks or a git repository of them.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_synced DATETIME
);
`
