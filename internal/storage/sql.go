package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    stamp      TIMESTAMP NOT NULL,
    kind       TEXT NOT NULL,
    message    TEXT NOT NULL,
    tracker    TEXT NOT NULL,
    controller TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_stamp ON events (stamp);
CREATE INDEX IF NOT EXISTS events_kind ON events (kind);`

	insertEventSQL = `
INSERT INTO events (stamp,
                    kind,
                    message,
                    tracker,
                    controller)
VALUES (?, ?, ?, ?, ?)`

	selectRecentEventsSQL = `
SELECT 
    stamp, 
    kind, 
    message, 
    tracker, 
    controller 
FROM events 
ORDER BY id DESC 
LIMIT ?`

	selectEventsByKindSQL = `
SELECT 
    stamp, 
    kind, 
    message, 
    tracker, 
    controller 
FROM events 
WHERE 
    kind = ? 
ORDER BY id DESC 
LIMIT ?`
)
