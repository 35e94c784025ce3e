package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/hiveboard/taskboard-backend/internal/core/domain"
	"github.com/hiveboard/taskboard-backend/internal/core/ports"
)

// changeChannel is the NOTIFY channel shared by all collections.
// Wakeups are advisory; observers re-read from their cursor either way.
const changeChannel = "entity_changes"

// ChangeFeed is the transactional outbox. Mutation services append a
// row inside the mutation's transaction; the bigserial id is the feed
// position and doubles as the durable resume cursor. A NOTIFY on append
// wakes waiting observers without polling.
type ChangeFeed struct {
	pool *pgxpool.Pool
}

var _ ports.ChangeFeed = (*ChangeFeed)(nil)

// NewChangeFeed creates a new change feed over the given pool.
func NewChangeFeed(pool *pgxpool.Pool) *ChangeFeed {
	return &ChangeFeed{pool: pool}
}

// Append records a committed mutation. It participates in the caller's
// transaction when one is carried in ctx.
func (f *ChangeFeed) Append(ctx context.Context, change *domain.ChangeNotification) error {
	db := GetDBTX(ctx, f.pool)

	_, err := db.Exec(ctx, `
		INSERT INTO entity_changes (collection, operation, entity_id, project_id, group_id, assignee_id, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(change.Collection), string(change.Operation), change.EntityID,
		change.ProjectID, change.GroupID, change.AssigneeID, change.Document,
	)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}

	// The notification fires on commit, alongside the row it announces.
	if _, err := db.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, string(change.Collection)); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

// ReadAfter returns up to limit changes for the collection with feed
// position strictly greater than after, oldest first.
func (f *ChangeFeed) ReadAfter(ctx context.Context, collection domain.Collection, after int64, limit int) ([]domain.ChangeNotification, error) {
	rows, err := GetDBTX(ctx, f.pool).Query(ctx, `
		SELECT id, collection, operation, entity_id, project_id, group_id, assignee_id, document, occurred_at
		FROM entity_changes
		WHERE collection = $1 AND id > $2
		ORDER BY id
		LIMIT $3`,
		string(collection), after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("read changes: %w", err)
	}
	defer rows.Close()

	changes := make([]domain.ChangeNotification, 0)
	for rows.Next() {
		var change domain.ChangeNotification
		var coll, op string
		err := rows.Scan(
			&change.ID,
			&coll,
			&op,
			&change.EntityID,
			&change.ProjectID,
			&change.GroupID,
			&change.AssigneeID,
			&change.Document,
			&change.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		change.Collection = domain.Collection(coll)
		change.Operation = domain.Operation(op)
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

// WaitForChange blocks on a LISTEN connection until a change is
// announced or ctx ends. Each caller holds its own connection, so the
// per-collection observers wait independently. A notification landing
// between a read and the LISTEN is not seen here; the observers'
// poll interval covers that window.
func (f *ChangeFeed) WaitForChange(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `LISTEN `+changeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("wait for notification: %w", err)
	}
	return nil
}

// CursorStore persists per-collection resume cursors in the
// change_cursors table.
type CursorStore struct {
	pool *pgxpool.Pool
}

var _ ports.CursorStore = (*CursorStore)(nil)

// NewCursorStore creates a new cursor store.
func NewCursorStore(pool *pgxpool.Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Load returns the saved cursor for a collection, zero if none.
func (s *CursorStore) Load(ctx context.Context, collection domain.Collection) (int64, error) {
	var position int64
	err := GetDBTX(ctx, s.pool).QueryRow(ctx,
		`SELECT position FROM change_cursors WHERE collection = $1`,
		string(collection),
	).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	return position, nil
}

// Save durably records the cursor for a collection.
func (s *CursorStore) Save(ctx context.Context, collection domain.Collection, position int64) error {
	_, err := GetDBTX(ctx, s.pool).Exec(ctx, `
		INSERT INTO change_cursors (collection, position)
		VALUES ($1, $2)
		ON CONFLICT (collection) DO UPDATE SET position = EXCLUDED.position`,
		string(collection), position,
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
