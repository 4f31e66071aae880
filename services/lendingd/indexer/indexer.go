// Package indexer persists published protocol events for querying.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"memelend/core/events"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// EventRecord is one row of the events table.
type EventRecord struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	UUID       string    `gorm:"size:36;uniqueIndex"`
	Digest     string    `gorm:"size:64;uniqueIndex"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

func (EventRecord) TableName() string { return "events" }

// Event is the query view of a stored event.
type Event struct {
	Seq        uint64            `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Filter narrows Query. After is an exclusive sequence cursor.
type Filter struct {
	Type  string
	After uint64
	Limit int
}

// Open connects to the configured driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		if strings.TrimSpace(dsn) == "" {
			dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return db, nil
}

// Index writes events into the database. It implements events.Emitter.
type Index struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// New migrates the schema and returns an index over db.
func New(db *gorm.DB, log *slog.Logger) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Index{db: db, logger: log, nowFn: time.Now}, nil
}

// Emit stores evt. Replays of an identical event are ignored.
func (i *Index) Emit(evt events.Event) {
	if err := i.Store(context.Background(), evt); err != nil {
		i.logger.Warn("index event", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Store is Emit with an error result.
func (i *Index) Store(ctx context.Context, evt events.Event) error {
	rendered := events.Render(evt)
	if rendered == nil {
		return nil
	}
	attrs, err := json.Marshal(rendered.Attributes)
	if err != nil {
		return err
	}
	rec := EventRecord{
		UUID:       uuid.NewString(),
		Digest:     rendered.ID(),
		Type:       rendered.Type,
		Attributes: string(attrs),
		CreatedAt:  i.nowFn().UTC(),
	}
	return i.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest"}}, DoNothing: true}).
		Create(&rec).Error
}

// Query returns events in sequence order.
func (i *Index) Query(ctx context.Context, f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := i.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", f.After)
	if t := strings.TrimSpace(f.Type); t != "" {
		if strings.HasSuffix(t, ".") {
			q = q.Where("type LIKE ?", t+"%")
		} else {
			q = q.Where("type = ?", t)
		}
	}
	var rows []EventRecord
	if err := q.Order("seq ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("indexer: decode event %d: %w", row.Seq, err)
		}
		out = append(out, Event{
			Seq:        row.Seq,
			ID:         row.UUID,
			Type:       row.Type,
			Attributes: attrs,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (i *Index) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
