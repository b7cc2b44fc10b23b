package store

const schema = `
CREATE TABLE IF NOT EXISTS monitored_groups (
    slug       TEXT PRIMARY KEY,
    url        TEXT NOT NULL,
    enabled    INTEGER NOT NULL DEFAULT 0,
    added_at   INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_groups_enabled ON monitored_groups(enabled, added_at);

CREATE TABLE IF NOT EXISTS leads (
    dedupe_key    TEXT PRIMARY KEY,
    id            TEXT NOT NULL UNIQUE,
    first_seen_at INTEGER NOT NULL,
    group_slug    TEXT NOT NULL DEFAULT '',
    group_url     TEXT NOT NULL DEFAULT '',
    profile_name  TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    author_url    TEXT NOT NULL DEFAULT '',
    text          TEXT NOT NULL DEFAULT '',
    permalink     TEXT NOT NULL DEFAULT '',
    posted_at     INTEGER NOT NULL DEFAULT 0,
    origin        TEXT NOT NULL DEFAULT 'facebook',
    status        TEXT NOT NULL DEFAULT 'new',
    note          TEXT NOT NULL DEFAULT '',
    updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_updated ON leads(updated_at);
CREATE INDEX IF NOT EXISTS idx_leads_group ON leads(group_slug);

CREATE TABLE IF NOT EXISTS profiles (
    id      TEXT PRIMARY KEY,
    name    TEXT NOT NULL,
    include TEXT NOT NULL DEFAULT '[]',
    exclude TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
