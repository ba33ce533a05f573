// Package backup periodically copies the account store to object storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"course-auth/internal/storage"
)

const (
	snapshotPrefix  = "accounts-"
	snapshotSuffix  = ".json"
	timestampLayout = "20060102T150405.000Z"
)

// ErrDisabled is returned by the no-op manager used when no bucket is configured.
var ErrDisabled = errors.New("backups are not configured")

// Snapshotter produces a consistent JSON export of the account store.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Manager uploads store snapshots on a timer and on demand.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	RunOnce(ctx context.Context) (string, error)
	List(ctx context.Context) ([]storage.ObjectInfo, error)
}

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	// Retain is how many snapshots to keep; older ones are deleted after each upload.
	Retain int
	Logger *logrus.Logger
	Now    func() time.Time
}

type manager struct {
	cfg     Config
	source  Snapshotter
	storage storage.Service

	runMu  sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewManager(cfg Config, source Snapshotter, store storage.Service) Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Retain <= 0 {
		cfg.Retain = 24
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &manager{
		cfg:     cfg,
		source:  source,
		storage: store,
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("backup bucket is required")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.loop(loopCtx)
	m.cfg.Logger.Infof("backup manager started, bucket %s every %s", m.cfg.Bucket, m.cfg.Interval)
	return nil
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("backup manager stopped")
}

func (m *manager) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.cfg.Logger.Warnf("scheduled backup: %v", err)
			}
		}
	}
}

// RunOnce uploads one snapshot, prunes old ones and returns the new location.
// A pruning failure is logged but does not fail the backup.
func (m *manager) RunOnce(ctx context.Context) (string, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	data, err := m.source.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot store: %w", err)
	}

	key := m.objectKey(m.cfg.Now().UTC())
	location, err := m.storage.PutObject(ctx, data, storage.PutOptions{
		Bucket:      m.cfg.Bucket,
		Key:         key,
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	m.cfg.Logger.WithFields(logrus.Fields{
		"location": location,
		"bytes":    len(data),
	}).Info("account store backed up")

	if err := m.prune(ctx); err != nil {
		m.cfg.Logger.Warnf("prune backups: %v", err)
	}
	return location, nil
}

// List returns existing snapshots, newest first.
func (m *manager) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := m.storage.ListObjects(ctx, m.cfg.Bucket, m.listPrefix())
	if err != nil {
		return nil, err
	}
	snapshots := objects[:0]
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotSuffix) {
			snapshots = append(snapshots, obj)
		}
	}
	// the timestamp layout sorts lexically
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Key > snapshots[j].Key
	})
	return snapshots, nil
}

func (m *manager) prune(ctx context.Context) error {
	snapshots, err := m.List(ctx)
	if err != nil {
		return err
	}
	if len(snapshots) <= m.cfg.Retain {
		return nil
	}
	stale := make([]string, 0, len(snapshots)-m.cfg.Retain)
	for _, obj := range snapshots[m.cfg.Retain:] {
		stale = append(stale, obj.Key)
	}
	if err := m.storage.DeleteObjects(ctx, m.cfg.Bucket, stale); err != nil {
		return err
	}
	m.cfg.Logger.Infof("pruned %d old backups", len(stale))
	return nil
}

func (m *manager) objectKey(at time.Time) string {
	name := snapshotPrefix + at.Format(timestampLayout) + snapshotSuffix
	if m.cfg.KeyPrefix == "" {
		return name
	}
	return m.cfg.KeyPrefix + "/" + name
}

func (m *manager) listPrefix() string {
	if m.cfg.KeyPrefix == "" {
		return snapshotPrefix
	}
	return m.cfg.KeyPrefix + "/" + snapshotPrefix
}

// Disabled is the Manager used when backups are switched off.
type Disabled struct{}

func (Disabled) Start(context.Context) error { return nil }
func (Disabled) Shutdown()                   {}

func (Disabled) RunOnce(context.Context) (string, error) { return "", ErrDisabled }

func (Disabled) List(context.Context) ([]storage.ObjectInfo, error) { return nil, ErrDisabled }
