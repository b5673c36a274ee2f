package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"supik-server/internal/logger"
	"supik-server/internal/metrics"
	"supik-server/internal/scheduler"
	"supik-server/internal/storage"
)

const keyTimeLayout = "20060102T150405Z"

// ErrAlreadyArchived is returned by Export when the window's object exists.
var ErrAlreadyArchived = errors.New("audit: window already archived")

// ArchiveKey is the object key for the window [from, to).
func ArchiveKey(prefix string, from, to time.Time) string {
	from, to = from.UTC(), to.UTC()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%s-%s.jsonl", prefix, from.Format("2006/01/02"), from.Format(keyTimeLayout), to.Format(keyTimeLayout))
}

// Exporter writes windows of the audit log to object storage as JSON lines.
type Exporter struct {
	svc    *Service
	store  *storage.Client
	prefix string
}

func NewExporter(svc *Service, store *storage.Client, prefix string) *Exporter {
	return &Exporter{svc: svc, store: store, prefix: prefix}
}

// Export uploads every record in [from, to). An empty window uploads
// nothing and returns an empty key. An existing object for the window is
// never overwritten: Export returns its key with ErrAlreadyArchived.
func (e *Exporter) Export(ctx context.Context, from, to time.Time) (string, int, error) {
	if !to.After(from) {
		return "", 0, fmt.Errorf("empty archive window %s - %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	key := ArchiveKey(e.prefix, from, to)
	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return "", 0, fmt.Errorf("check %s: %w", key, err)
	}
	if exists {
		return key, 0, ErrAlreadyArchived
	}

	logs, err := e.svc.Range(ctx, from, to)
	if err != nil {
		return "", 0, fmt.Errorf("read audit log: %w", err)
	}
	if len(logs) == 0 {
		return "", 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range logs {
		if err := enc.Encode(&logs[i]); err != nil {
			return "", 0, fmt.Errorf("encode audit record %d: %w", logs[i].ID, err)
		}
	}

	if err := e.store.Upload(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return "", 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return key, len(logs), nil
}

// ArchiveJob exports the window since its previous successful run. The
// first window starts at midnight UTC of the day the job was created.
type ArchiveJob struct {
	exporter *Exporter
	clock    scheduler.Clock

	mu   sync.Mutex
	last time.Time
}

func NewArchiveJob(exporter *Exporter, clock scheduler.Clock) *ArchiveJob {
	return &ArchiveJob{
		exporter: exporter,
		clock:    clock,
		last:     clock.Now().UTC().Truncate(24 * time.Hour),
	}
}

func (j *ArchiveJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	to := j.clock.Now().UTC()
	if !to.After(j.last) {
		return nil
	}

	key, n, err := j.exporter.Export(ctx, j.last, to)
	if errors.Is(err, ErrAlreadyArchived) {
		metrics.ArchiveRuns.WithLabelValues("skipped").Inc()
		logger.Warn("audit window already archived", zap.String("key", key))
		j.last = to
		return nil
	}
	if err != nil {
		metrics.ArchiveRuns.WithLabelValues("error").Inc()
		return err
	}

	if n == 0 {
		metrics.ArchiveRuns.WithLabelValues("empty").Inc()
	} else {
		metrics.ArchiveRuns.WithLabelValues("ok").Inc()
		logger.Info("audit log archived", zap.String("key", key), zap.Int("records", n))
	}
	j.last = to
	return nil
}
