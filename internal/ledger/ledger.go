// Where: internal/ledger/ledger.go
// What: Optional DynamoDB ledger of pushed image tags.
// Why: Keep a queryable history of which tag each repository received per run.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	keyRepository = "repository"
	keyTag        = "tag"
)

// Entry is one pushed image.
type Entry struct {
	Repository string
	Tag        string
	URL        string
	Service    string
	Stage      string
	Owner      string
	PushedAt   time.Time
}

// Item flattens the entry into string attributes.
func (e Entry) Item() map[string]string {
	return map[string]string{
		keyRepository: e.Repository,
		keyTag:        e.Tag,
		"url":         e.URL,
		"service":     e.Service,
		"stage":       e.Stage,
		"owner":       e.Owner,
		"pushedAt":    e.PushedAt.UTC().Format(time.RFC3339),
	}
}

// TableSpec describes the ledger table layout.
type TableSpec struct {
	Name     string
	HashKey  string
	RangeKey string
}

// API is the DynamoDB surface used by the ledger.
type API interface {
	ListTables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, spec TableSpec) error
	PutItem(ctx context.Context, table string, item map[string]string) error
}

// Ledger writes entries into one table, creating it on first use.
type Ledger struct {
	client API
	table  string

	mu    sync.Mutex
	ready bool
}

// New returns a ledger over table.
func New(client API, table string) *Ledger {
	return &Ledger{client: client, table: strings.TrimSpace(table)}
}

// Table returns the configured table name.
func (l *Ledger) Table() string { return l.table }

// Record stores entry.
func (l *Ledger) Record(ctx context.Context, entry Entry) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("ledger client is nil")
	}
	if l.table == "" {
		return fmt.Errorf("ledger table is required")
	}
	if entry.Repository == "" || entry.Tag == "" {
		return fmt.Errorf("ledger entry requires repository and tag")
	}
	if err := l.ensureTable(ctx); err != nil {
		return err
	}
	if err := l.client.PutItem(ctx, l.table, entry.Item()); err != nil {
		return fmt.Errorf("put ledger item: %w", err)
	}
	return nil
}

func (l *Ledger) ensureTable(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return nil
	}
	names, err := l.client.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if !slices.Contains(names, l.table) {
		spec := TableSpec{Name: l.table, HashKey: keyRepository, RangeKey: keyTag}
		if err := l.client.CreateTable(ctx, spec); err != nil {
			return fmt.Errorf("create table %s: %w", l.table, err)
		}
	}
	l.ready = true
	return nil
}
