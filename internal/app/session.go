// Where: internal/app/session.go
// What: Per-command host and orchestrator wiring.
// Why: Every command loads the service the same way before spawning lifecycles.
package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/hybridless/hybridless/internal/host"
	"github.com/hybridless/hybridless/internal/ledger"
	"github.com/hybridless/hybridless/internal/plugin"
	"github.com/hybridless/hybridless/internal/staging"
)

type session struct {
	host   *host.Host
	plugin *plugin.Plugin
	closer io.Closer
}

type sessionOptions struct {
	pruneLocal bool
	// now replaces Dependencies.Now, e.g. to pin the run tag.
	now func() time.Time
}

// openSession loads the service, registers the orchestrator and resolves
// variables.
func openSession(ctx context.Context, cli CLI, deps Dependencies, opts sessionOptions) (*session, error) {
	h, err := host.Load(host.Options{
		ConfigPath: joinWorkDir(deps.WorkDir, cli.Config),
		Stage:      cli.Stage,
		Region:     cli.Region,
		Log:        deps.Log,
	})
	if err != nil {
		return nil, err
	}
	if deps.Provider != nil {
		h.SetProvider(deps.Provider)
	}

	root, err := staging.RootDir(h.Dir())
	if err != nil {
		return nil, err
	}
	cfg := plugin.Config{
		Runner:      deps.Runner,
		Log:         deps.Log,
		ServiceDir:  h.Dir(),
		StagingRoot: root,
		Now:         deps.Now,
		PruneLocal:  opts.pruneLocal,
	}
	if opts.now != nil {
		cfg.Now = opts.now
	}
	if cli.LedgerTable != "" {
		cfg.Ledger = &lazyLedger{host: h, table: cli.LedgerTable}
	}

	s := &session{host: h}
	if deps.NewBuilder != nil {
		b, closer, err := deps.NewBuilder()
		if err != nil {
			return nil, err
		}
		cfg.Builder = b
		s.closer = closer
	}

	p, err := plugin.New(h, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	h.Register(p)
	if err := h.Populate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.plugin = p
	return s, nil
}

func (s *session) Close() {
	if s == nil || s.closer == nil {
		return
	}
	_ = s.closer.Close()
}

// lazyLedger opens the DynamoDB ledger on the first pushed tag.
type lazyLedger struct {
	host  *host.Host
	table string

	mu     sync.Mutex
	ledger *ledger.Ledger
}

func (l *lazyLedger) Record(ctx context.Context, entry ledger.Entry) error {
	l.mu.Lock()
	if l.ledger == nil {
		aws := l.host.AWS()
		if aws == nil {
			l.mu.Unlock()
			return fmt.Errorf("ledger requires the aws provider")
		}
		opened, err := aws.Ledger(ctx, l.table)
		if err != nil {
			l.mu.Unlock()
			return err
		}
		l.ledger = opened
	}
	lg := l.ledger
	l.mu.Unlock()
	return lg.Record(ctx, entry)
}

func joinWorkDir(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
