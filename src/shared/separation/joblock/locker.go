// Package joblock serializes separation jobs that share a destination.
//
// A key is held in-process through a keyed mutex and, when a lock directory
// is configured, across processes through a flock(2) lock file named after
// the key's hash. Lock files are never removed, removing them would let two
// processes lock different inodes for the same key.
package joblock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gofrs/flock"
	"github.com/veedubyou/stem-splitter/src/shared/lib/cerr"
)

const defaultRetryDelay = 250 * time.Millisecond

type ReleaseFunc func()

type Locker struct {
	lockDir    string
	retryDelay time.Duration

	mutex   sync.Mutex
	entries map[string]*entry
}

type entry struct {
	token chan struct{}
	refs  int
}

// NewLocker creates lockDir if needed. An empty lockDir keeps locking
// in-process only.
func NewLocker(lockDir string) (*Locker, error) {
	if lockDir != "" {
		if err := os.MkdirAll(lockDir, os.ModePerm); err != nil {
			return nil, cerr.Field("lock_dir", lockDir).Wrap(err).Error("Failed to create lock directory")
		}
	}

	return &Locker{
		lockDir:    lockDir,
		retryDelay: defaultRetryDelay,
		entries:    map[string]*entry{},
	}, nil
}

// Lock acquires every key, always in sorted order so that two callers with
// overlapping key sets cannot deadlock. On error nothing stays held.
func (l *Locker) Lock(ctx context.Context, keys ...string) (ReleaseFunc, error) {
	keys = uniqueSorted(keys)
	releases := make([]func(), 0, len(keys)*2)

	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range keys {
		release, err := l.lockLocal(ctx, key)
		if err != nil {
			releaseAll()
			return nil, cerr.Field("key", key).Wrap(err).Error("Failed to acquire in-process lock")
		}
		releases = append(releases, release)

		if l.lockDir == "" {
			continue
		}

		release, err = l.lockFile(ctx, key)
		if err != nil {
			releaseAll()
			return nil, cerr.Field("key", key).Wrap(err).Error("Failed to acquire lock file")
		}
		releases = append(releases, release)
	}

	once := sync.Once{}
	return func() { once.Do(releaseAll) }, nil
}

func (l *Locker) lockLocal(ctx context.Context, key string) (func(), error) {
	l.mutex.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mutex.Unlock()

	select {
	case e.token <- struct{}{}:
		return func() {
			<-e.token
			l.drop(key, e)
		}, nil

	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	}
}

func (l *Locker) drop(key string, e *entry) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Locker) lockFile(ctx context.Context, key string) (func(), error) {
	lockPath := l.LockFilePath(key)
	fileLock := flock.New(lockPath)

	locked, err := fileLock.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, cerr.Field("lock_path", lockPath).Wrap(err).Error("Failed to lock file")
	}

	if !locked {
		return nil, cerr.Field("lock_path", lockPath).Error("Lock file was not acquired")
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			log.WithError(err).WithField("lockPath", lockPath).Warn("Failed to release lock file")
		}
	}, nil
}

func (l *Locker) LockFilePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(l.lockDir, hex.EncodeToString(sum[:])+".lock")
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, key)
	}

	sort.Strings(unique)
	return unique
}
