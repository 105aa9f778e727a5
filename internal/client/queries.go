package client

import (
	"context"
	"errors"
	"strconv"

	"github.com/casecompass/case-compass/internal/cache"
	"github.com/casecompass/case-compass/pkg/logger"
)

// Queries wraps a Client with a result cache. Reads are served from the
// cache until a mutation of the same entity succeeds.
type Queries struct {
	client  *Client
	cache   cache.Cache
	logger  *logger.Logger
	onError func(error)
}

// NewQueries returns cached queries over c. onError, when set, receives
// every failure after it has been logged.
func NewQueries(c *Client, store cache.Cache, onError func(error)) *Queries {
	return &Queries{client: c, cache: store, logger: c.logger, onError: onError}
}

func (q *Queries) fail(msg, entity string, err error) error {
	q.logger.Error(msg, "entity", entity, "error", err)
	if q.onError != nil {
		q.onError(err)
	}
	return err
}

// invalidate drops the cached rows of the written entity and of every
// entity its server-side hooks rewrite.
func (q *Queries) invalidate(path string, affects []string) {
	q.cache.Invalidate(path)
	for _, other := range affects {
		q.cache.Invalidate(other)
	}
}

// List loads every row of e. Lists are not retried.
func List[T any](ctx context.Context, q *Queries, e *Entity[T]) ([]T, error) {
	key := cache.Key(e.path)
	if cached, ok := q.cache.Get(key); ok {
		return append([]T(nil), cached.([]T)...), nil
	}

	rows, err := e.List(ctx)
	if err != nil {
		return nil, q.fail("Failed to load list", e.path, err)
	}

	q.cache.Set(key, rows)
	return append([]T(nil), rows...), nil
}

// Get loads row id of e.
func Get[T any](ctx context.Context, q *Queries, e *Entity[T], id int64) (*T, error) {
	key := cache.Key(e.path, strconv.FormatInt(id, 10))
	if cached, ok := q.cache.Get(key); ok {
		row := cached.(T)
		return &row, nil
	}

	row, err := e.Get(ctx, id)
	if err != nil {
		return nil, q.fail("Failed to load item", e.path, err)
	}

	q.cache.Set(key, *row)
	return row, nil
}

func Create[T any](ctx context.Context, q *Queries, e *Entity[T], values interface{}) (int64, error) {
	id, err := e.Create(ctx, values)
	if err != nil {
		return 0, q.fail("Failed to create item", e.path, err)
	}
	q.invalidate(e.path, e.affects)
	return id, nil
}

func Update[T any](ctx context.Context, q *Queries, e *Entity[T], id int64, values interface{}) error {
	if err := e.Update(ctx, id, values); err != nil {
		return q.fail("Failed to update item", e.path, err)
	}
	q.invalidate(e.path, e.affects)
	return nil
}

func Delete[T any](ctx context.Context, q *Queries, e *Entity[T], id int64) error {
	if err := e.Delete(ctx, id); err != nil {
		return q.fail("Failed to delete item", e.path, err)
	}
	q.invalidate(e.path, e.affects)
	return nil
}

// Action runs a workflow endpoint of e and invalidates the entity.
func Action[T any](ctx context.Context, q *Queries, e *Entity[T], id int64, action string, body interface{}) (*T, error) {
	row, err := e.Action(ctx, id, action, body)
	if err != nil {
		return nil, q.fail("Failed to "+action+" item", e.path, err)
	}
	q.invalidate(e.path, e.affects)
	return row, nil
}

// TestConnection is retried once before the failure is reported.
func (q *Queries) TestConnection(ctx context.Context) (*ConnectionStatus, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var status *ConnectionStatus
		status, err = q.client.TestConnection(ctx)
		if err == nil {
			return status, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		q.logger.Warn("Connection test failed", "attempt", attempt+1, "error", err)
	}
	return nil, q.fail("Connection test failed", "test-connection", err)
}
