package store

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Query lifecycle signals.
var (
	QueryStarted   = capitan.NewSignal("docql.query.started", "Document query execution started")
	QueryCompleted = capitan.NewSignal("docql.query.completed", "Document query completed successfully")
	QueryFailed    = capitan.NewSignal("docql.query.failed", "Document query failed with error")
)

// Signal field keys.
var (
	CollectionKey   = capitan.NewStringKey("collection")
	OperationKey    = capitan.NewStringKey("operation")
	SQLKey          = capitan.NewStringKey("sql")
	DurationMsKey   = capitan.NewInt64Key("duration_ms")
	RowsReturnedKey = capitan.NewIntKey("rows_returned")
	RowsAffectedKey = capitan.NewInt64Key("rows_affected")
	ErrorKey        = capitan.NewStringKey("error")
)

func (s *Store) emitStarted(ctx context.Context, collection, op, sqlText string) {
	capitan.Debug(ctx, QueryStarted,
		CollectionKey.Field(collection),
		OperationKey.Field(op),
		SQLKey.Field(sqlText),
	)
}

func (s *Store) emitReturned(ctx context.Context, collection, op string, start time.Time, rows int) {
	capitan.Info(ctx, QueryCompleted,
		CollectionKey.Field(collection),
		OperationKey.Field(op),
		DurationMsKey.Field(time.Since(start).Milliseconds()),
		RowsReturnedKey.Field(rows),
	)
}

func (s *Store) emitAffected(ctx context.Context, collection, op string, start time.Time, rows int64) {
	capitan.Info(ctx, QueryCompleted,
		CollectionKey.Field(collection),
		OperationKey.Field(op),
		DurationMsKey.Field(time.Since(start).Milliseconds()),
		RowsAffectedKey.Field(rows),
	)
}

// failed emits QueryFailed, logs err and returns it.
func (s *Store) failed(ctx context.Context, collection, op string, start time.Time, err error) error {
	capitan.Error(ctx, QueryFailed,
		CollectionKey.Field(collection),
		OperationKey.Field(op),
		DurationMsKey.Field(time.Since(start).Milliseconds()),
		ErrorKey.Field(err.Error()),
	)
	s.log.Error("query failed", "collection", collection, "operation", op, "error", err)
	return err
}
