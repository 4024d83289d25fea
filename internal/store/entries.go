package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/queue"
)

const entryColumns = `
	e.id, e.session_id, e.added_by, e.added_by_name, e.status, e.created_at,
	s.source, s.external_id, s.isrc, s.title, s.artists, s.album, s.duration_ms, s.artwork_url`

const entryFrom = `
	FROM queue_entries e
	JOIN songs s ON s.source = e.song_source AND s.external_id = e.song_external_id`

func scanEntry(row interface{ Scan(...interface{}) error }) (queue.Entry, error) {
	var (
		e         queue.Entry
		status    string
		createdAt int64
		source    string
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.AddedBy, &e.AddedByName, &status, &createdAt,
		&source, &e.Song.ExternalID, &e.Song.ISRC, &e.Song.Title, &e.Song.Artists, &e.Song.Album,
		&e.Song.DurationMS, &e.Song.ArtworkURL); err != nil {
		return queue.Entry{}, err
	}
	e.Status = queue.Status(status)
	e.CreatedAt = fromUnix(createdAt)
	e.Song.Source = catalog.Source(source)
	return e, nil
}

// UpsertSong stores or refreshes a catalog record.
func (q *Queries) UpsertSong(ctx context.Context, song catalog.Song) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO songs (source, external_id, isrc, title, artists, album, duration_ms, artwork_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, external_id) DO UPDATE SET
			isrc = excluded.isrc,
			title = excluded.title,
			artists = excluded.artists,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			artwork_url = excluded.artwork_url`,
		string(song.Source), song.ExternalID, song.ISRC, song.Title, song.Artists, song.Album, song.DurationMS, song.ArtworkURL)
	if err != nil {
		return classify(fmt.Errorf("upsert song: %w", err))
	}
	return nil
}

// InsertEntry adds a queue entry. The song must already exist.
func (q *Queries) InsertEntry(ctx context.Context, e queue.Entry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO queue_entries (id, session_id, song_source, song_external_id, added_by, added_by_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		queue.CanonicalID(e.ID), queue.CanonicalID(e.SessionID), string(e.Song.Source), e.Song.ExternalID,
		queue.CanonicalID(e.AddedBy), e.AddedByName, string(e.Status), toUnix(e.CreatedAt))
	if err != nil {
		return classify(fmt.Errorf("insert queue entry: %w", err))
	}
	return nil
}

// GetEntry loads one entry with its song.
func (q *Queries) GetEntry(ctx context.Context, id string) (queue.Entry, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+entryColumns+entryFrom+` WHERE e.id = ?`, queue.CanonicalID(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Entry{}, queue.ErrEntryNotFound
	}
	if err != nil {
		return queue.Entry{}, classify(fmt.Errorf("get queue entry: %w", err))
	}
	return e, nil
}

// ListActiveEntries returns the queued and playing entries of a session in
// insertion order.
func (q *Queries) ListActiveEntries(ctx context.Context, sessionID string) ([]queue.Entry, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+entryColumns+entryFrom+`
		WHERE e.session_id = ? AND e.status IN ('queued', 'playing')
		ORDER BY e.created_at, e.id`, queue.CanonicalID(sessionID))
	if err != nil {
		return nil, classify(fmt.Errorf("list queue entries: %w", err))
	}
	defer rows.Close()

	var entries []queue.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list queue entries: %w", err))
	}
	return entries, nil
}

// TransitionEntry moves an entry from one status to another. The update is
// conditional on the entry still being in `from`, so a concurrent transition
// cannot be overwritten. Illegal moves return queue.ErrInvalidTransition.
func (q *Queries) TransitionEntry(ctx context.Context, id string, from, to queue.Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, from, to)
	}
	res, err := q.db.ExecContext(ctx, `UPDATE queue_entries SET status = ? WHERE id = ? AND status = ?`,
		string(to), queue.CanonicalID(id), string(from))
	if err != nil {
		return classify(fmt.Errorf("transition queue entry: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	current, err := q.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: entry is %s, not %s", queue.ErrInvalidTransition, current.Status, from)
}
