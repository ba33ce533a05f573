package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-auth/internal/storage"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) PutObject(_ context.Context, body []byte, opts storage.PutOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	f.objects[opts.Key] = append([]byte(nil), body...)
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (f *fakeStorage) ListObjects(_ context.Context, _ string, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeStorage) DeleteObjects(_ context.Context, _ string, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.objects, k)
	}
	return nil
}

func (f *fakeStorage) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.objects))
	for k := range f.objects {
		out = append(out, k)
	}
	return out
}

type staticSnapshot struct {
	data []byte
	err  error
}

func (s staticSnapshot) Snapshot(context.Context) ([]byte, error) {
	return s.data, s.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestRunOnce_UploadsSnapshot(t *testing.T) {
	store := newFakeStorage()
	c := &clock{t: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)}
	m := NewManager(Config{Bucket: "b", KeyPrefix: "/course-auth/", Logger: quietLogger(), Now: c.now},
		staticSnapshot{data: []byte(`[{"id":"1"}]`)}, store)

	loc, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3://b/course-auth/accounts-20240304T050608.000Z.json", loc)
	assert.Equal(t, []string{"course-auth/accounts-20240304T050608.000Z.json"}, store.keys())
}

func TestRunOnce_PrunesBeyondRetention(t *testing.T) {
	store := newFakeStorage()
	store.objects["course-auth/unrelated.txt"] = []byte("x")
	c := &clock{t: time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)}
	m := NewManager(Config{Bucket: "b", KeyPrefix: "course-auth", Retain: 3, Logger: quietLogger(), Now: c.now},
		staticSnapshot{data: []byte(`[]`)}, store)

	for i := 0; i < 5; i++ {
		_, err := m.RunOnce(context.Background())
		require.NoError(t, err)
	}

	snapshots, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, "course-auth/accounts-20240304T050612.000Z.json", snapshots[0].Key)
	assert.Equal(t, "course-auth/accounts-20240304T050610.000Z.json", snapshots[2].Key)
	assert.Contains(t, store.keys(), "course-auth/unrelated.txt")
}

func TestRunOnce_Failures(t *testing.T) {
	store := newFakeStorage()
	m := NewManager(Config{Bucket: "b", Logger: quietLogger()}, staticSnapshot{err: errors.New("disk")}, store)
	_, err := m.RunOnce(context.Background())
	require.ErrorContains(t, err, "snapshot store")

	store.putErr = fmt.Errorf("network down")
	m = NewManager(Config{Bucket: "b", Logger: quietLogger()}, staticSnapshot{data: []byte(`[]`)}, store)
	_, err = m.RunOnce(context.Background())
	require.ErrorContains(t, err, "upload snapshot")
}

func TestStartRequiresBucket(t *testing.T) {
	m := NewManager(Config{Logger: quietLogger()}, staticSnapshot{}, newFakeStorage())
	require.Error(t, m.Start(context.Background()))
}

func TestStart_RunsOnInterval(t *testing.T) {
	store := newFakeStorage()
	m := NewManager(Config{Bucket: "b", Interval: 10 * time.Millisecond, Logger: quietLogger()},
		staticSnapshot{data: []byte(`[]`)}, store)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return len(store.keys()) > 0 }, 2*time.Second, 5*time.Millisecond)
	m.Shutdown()
}

func TestDisabled(t *testing.T) {
	var m Manager = Disabled{}
	require.NoError(t, m.Start(context.Background()))
	_, err := m.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrDisabled)
	_, err = m.List(context.Background())
	require.ErrorIs(t, err, ErrDisabled)
	m.Shutdown()
}
