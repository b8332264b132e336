package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dscengine/core/events"
	"dscengine/core/types"
	"dscengine/observability"
)

// participantKeys are the event attributes naming an account the event
// concerns.
var participantKeys = []string{"user", "account", "liquidator", "from", "to", "onBehalfOf", "payer", "owner", "spender"}

// EventRecord is a committed event.
type EventRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence     uint64    `gorm:"uniqueIndex;not null"`
	Type         string    `gorm:"size:64;index"`
	Attributes   string    `gorm:"type:text"`
	CreatedAt    time.Time
	Participants []Participant `gorm:"foreignKey:EventID"`
}

// Participant links an event to an account it concerns.
type Participant struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID uuid.UUID `gorm:"type:uuid;index"`
	Account string    `gorm:"size:42;index"`
	Role    string    `gorm:"size:32"`
}

// Open connects to the event database for driver ("sqlite" or "postgres").
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported indexer driver %q", driver)
	}
}

// AutoMigrate applies the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &Participant{})
}

// Indexer persists committed events and answers history queries. It
// implements events.Emitter.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	clock   func() time.Time
	metrics interface{ RecordPublished(string) }

	mu   sync.Mutex
	next uint64
}

// New migrates db and resumes sequencing after the highest stored event.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate indexer: %w", err)
	}
	var last EventRecord
	next := uint64(1)
	err := db.Order("sequence DESC").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		next = last.Sequence + 1
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("load last sequence: %w", err)
	}
	return &Indexer{db: db, logger: logger, clock: time.Now, metrics: observability.Events(), next: next}, nil
}

// Emit implements events.Emitter. Failures are logged; the engine has already
// committed by the time events reach the indexer.
func (i *Indexer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if _, err := i.Store(context.Background(), evt.Event()); err != nil {
		i.logger.Error("indexer: store event", "type", evt.EventType(), "error", err)
	}
}

// Store persists evt and returns the stored record.
func (i *Indexer) Store(ctx context.Context, evt *types.Event) (*EventRecord, error) {
	if evt == nil {
		return nil, fmt.Errorf("nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	rec := &EventRecord{
		ID:         uuid.New(),
		Sequence:   i.next,
		Type:       evt.Type,
		Attributes: string(attrs),
		CreatedAt:  i.clock().UTC(),
	}
	for _, key := range participantKeys {
		value, ok := evt.Attributes[key]
		if !ok || value == "" {
			continue
		}
		rec.Participants = append(rec.Participants, Participant{
			ID:      uuid.New(),
			EventID: rec.ID,
			Account: strings.ToLower(value),
			Role:    key,
		})
	}
	if err := i.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	i.next++
	i.metrics.RecordPublished(evt.Type)
	return rec, nil
}

// Query filters the event history.
type Query struct {
	Type    string
	Account string
	// After returns only events with a greater sequence.
	After uint64
	Limit int
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// List returns matching events in sequence order.
func (i *Indexer) List(ctx context.Context, q Query) ([]EventRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	tx := i.db.WithContext(ctx).Model(&EventRecord{}).Preload("Participants")
	if t := strings.TrimSpace(q.Type); t != "" {
		tx = tx.Where("type = ?", t)
	}
	if q.After > 0 {
		tx = tx.Where("sequence > ?", q.After)
	}
	if account := strings.ToLower(strings.TrimSpace(q.Account)); account != "" {
		tx = tx.Where("id IN (?)", i.db.Model(&Participant{}).Select("event_id").Where("account = ?", account))
	}
	var records []EventRecord
	if err := tx.Order("sequence ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return records, nil
}

// Decode returns the record as an event.
func (r EventRecord) Decode() (*types.Event, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Accounts returns the distinct participant accounts of the record.
func (r EventRecord) Accounts() []string {
	seen := make(map[string]struct{}, len(r.Participants))
	out := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if _, ok := seen[p.Account]; ok {
			continue
		}
		seen[p.Account] = struct{}{}
		out = append(out, p.Account)
	}
	sort.Strings(out)
	return out
}
