package database

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/infrastructure/metrics"
)

const queryStartKey = "queue:query_start"

// Instrument records the duration of every statement in the
// db_query_duration_seconds histogram, labelled by statement kind.
func Instrument(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("*").Register("metrics:before_create", startTimer),
		cb.Create().After("*").Register("metrics:after_create", observe("create")),
		cb.Query().Before("*").Register("metrics:before_query", startTimer),
		cb.Query().After("*").Register("metrics:after_query", observe("query")),
		cb.Update().Before("*").Register("metrics:before_update", startTimer),
		cb.Update().After("*").Register("metrics:after_update", observe("update")),
		cb.Delete().Before("*").Register("metrics:before_delete", startTimer),
		cb.Delete().After("*").Register("metrics:after_delete", observe("delete")),
		cb.Row().Before("*").Register("metrics:before_row", startTimer),
		cb.Row().After("*").Register("metrics:after_row", observe("row")),
		cb.Raw().Before("*").Register("metrics:before_raw", startTimer),
		cb.Raw().After("*").Register("metrics:after_raw", observe("raw")),
	)
}

func startTimer(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func observe(kind string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		if start, ok := v.(time.Time); ok {
			metrics.RecordDBQuery(kind, time.Since(start).Seconds())
		}
	}
}
