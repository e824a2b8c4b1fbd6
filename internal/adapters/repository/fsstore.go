package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/okian/jobfit/internal/domain/artifact"
	"github.com/okian/jobfit/internal/domain/encoding"
	"github.com/okian/jobfit/internal/domain/forest"
	"github.com/okian/jobfit/pkg/logger"
	"github.com/okian/jobfit/pkg/metrics"
)

// On-disk layout:
//
//	<dir>/CURRENT               name of the active version
//	<dir>/LOCK                  advisory lock held by writers in any process
//	<dir>/versions/<version>/   one immutable directory per version
//	<dir>/staging/<uuid>/       in-progress publishes
const (
	currentFile = "CURRENT"
	versionsDir = "versions"
	stagingDir  = "staging"
	lockFile    = "LOCK"

	lockRetryDelay  = 10 * time.Millisecond
	maxLoadAttempts = 3

	dirPerm  = 0o755
	filePerm = 0o644

	defaultCacheSize             = 4
	defaultMetricsUpdateInterval = 15 * time.Second
)

// component binds one artifact part to its file name.
type component struct {
	file string
	part func(*artifact.Set) any
}

var components = []component{
	{"manifest.json", func(s *artifact.Set) any { return &s.Manifest }},
	{"classifier.json", func(s *artifact.Set) any { return s.Classifier }},
	{"categorical_encoder.json", func(s *artifact.Set) any { return s.Categorical }},
	{"skills_encoder.json", func(s *artifact.Set) any { return s.Skills }},
	{"certifications_encoder.json", func(s *artifact.Set) any { return s.Certifications }},
	{"label_encoder.json", func(s *artifact.Set) any { return s.Labels }},
	{"feature_columns.json", func(s *artifact.Set) any { return &s.Schema }},
}

// FSStore is a Store on the local filesystem. Each version lives in its
// own directory that is fully written before it becomes visible, and the
// active version is switched by atomically replacing CURRENT.
type FSStore struct {
	dir       string
	cacheSize int
	retention int
	log       logger.Logger

	// publishMu serializes writers within the process; LOCK serializes
	// them across processes.
	publishMu sync.Mutex
	// pruneMu keeps version directories alive while they are being read.
	pruneMu sync.RWMutex
	cache   *setCache

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewFSStore opens (creating if needed) an artifact store rooted at dir.
// Leftover staging directories from interrupted publishes are removed while
// holding the writer lock, so a publish running in another process is never
// disturbed.
func NewFSStore(ctx context.Context, dir string, opts ...Option) (*FSStore, error) {
	s := &FSStore{
		dir:                   dir,
		cacheSize:             defaultCacheSize,
		log:                   logger.Nop(),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newSetCache(s.cacheSize)

	for _, d := range []string{s.dir, s.path(versionsDir), s.path(stagingDir)} {
		if err := os.MkdirAll(d, dirPerm); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	if err := s.clearStaging(ctx); err != nil {
		return nil, err
	}

	s.updateMetrics(ctx)
	s.startMetricsUpdater(ctx)
	return s, nil
}

// Dir returns the store root.
func (s *FSStore) Dir() string { return s.dir }

// Publish implements Store.Publish.
func (s *FSStore) Publish(ctx context.Context, set *artifact.Set) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	version := set.Manifest.Version
	if err := validVersion(version); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	unlock, err := s.lock(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	defer unlock()

	final := s.path(versionsDir, version)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("%w: version %s already exists", ErrPublish, version)
	}

	staging := s.path(stagingDir, uuid.NewString())
	if err := os.Mkdir(staging, dirPerm); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
		}
	}()

	for _, c := range components {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublish, err)
		}
		if err := writeJSONFile(filepath.Join(staging, c.file), c.part(set)); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrPublish, c.file, err)
		}
	}
	if err := syncDir(staging); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	published = true
	if err := syncDir(s.path(versionsDir)); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if err := s.setCurrent(version); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	s.cache.put(version, set)
	metrics.RecordArtifactPublish()
	metrics.UpdateActiveModel(set.Manifest.Classes, set.Manifest.Features, set.Manifest.TrainedAt)
	s.log.Info(ctx, "artifact set published",
		logger.String("version", version),
		logger.Int("features", set.Manifest.Features),
		logger.Int("classes", set.Manifest.Classes),
	)

	s.prune(ctx, version)
	return nil
}

// Load implements Store.Load. CURRENT is read on every call; decoded sets
// are cached by version, so a publish is visible to the very next Load.
func (s *FSStore) Load(ctx context.Context) (*artifact.Set, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}

	s.pruneMu.RLock()
	defer s.pruneMu.RUnlock()

	for attempt := 1; ; attempt++ {
		version, err := s.current()
		if err != nil {
			metrics.RecordArtifactLoad(metrics.LoadError, time.Since(start))
			return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
		}
		if set, ok := s.cache.get(version); ok {
			metrics.RecordArtifactLoad(metrics.LoadHit, time.Since(start))
			return set, nil
		}

		set, err := s.read(version)
		if err != nil {
			// Another process may have activated a newer version and pruned
			// this one while it was being read.
			if attempt < maxLoadAttempts && errors.Is(err, fs.ErrNotExist) && s.moved(version) {
				continue
			}
			metrics.RecordArtifactLoad(metrics.LoadError, time.Since(start))
			s.log.Error(ctx, "artifact set unreadable", logger.String("version", version), logger.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
		}
		s.cache.put(version, set)
		metrics.RecordArtifactLoad(metrics.LoadMiss, time.Since(start))
		return set, nil
	}
}

// moved reports whether CURRENT no longer names version.
func (s *FSStore) moved(version string) bool {
	now, err := s.current()
	return err == nil && now != version
}

// Versions implements Store.Versions.
func (s *FSStore) Versions(ctx context.Context) ([]VersionInfo, error) {
	names, err := s.versionNames()
	if err != nil {
		return nil, err
	}
	active, err := s.current()
	if err != nil && !errors.Is(err, ErrNoActiveVersion) {
		return nil, err
	}

	s.pruneMu.RLock()
	defer s.pruneMu.RUnlock()

	out := make([]VersionInfo, 0, len(names))
	for _, name := range names {
		var m artifact.Manifest
		if err := readJSONFile(s.path(versionsDir, name, components[0].file), &m); err != nil {
			s.log.Warn(ctx, "skipping unreadable version", logger.String("version", name), logger.Error(err))
			continue
		}
		out = append(out, VersionInfo{Manifest: m, Active: name == active})
	}
	return out, nil
}

// Rollback implements Store.Rollback. The target must decode into a valid
// set before it is activated.
func (s *FSStore) Rollback(ctx context.Context, version string) error {
	if err := validVersion(version); err != nil {
		return err
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(s.path(versionsDir, version)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, version)
	}
	s.pruneMu.RLock()
	set, err := s.read(version)
	s.pruneMu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}
	if err := s.setCurrent(version); err != nil {
		return err
	}
	s.cache.put(version, set)
	metrics.UpdateActiveModel(set.Manifest.Classes, set.Manifest.Features, set.Manifest.TrainedAt)
	s.log.Info(ctx, "active version rolled back", logger.String("version", version))
	return nil
}

// Close stops the background metrics updater.
func (s *FSStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// read decodes a version directory. Callers hold pruneMu for reading.
func (s *FSStore) read(version string) (*artifact.Set, error) {
	set := &artifact.Set{
		Classifier:     &forest.Forest{},
		Categorical:    &encoding.OneHotEncoder{},
		Skills:         &encoding.MultiLabelBinarizer{},
		Certifications: &encoding.MultiLabelBinarizer{},
		Labels:         &encoding.LabelEncoder{},
	}
	dir := s.path(versionsDir, version)
	for _, c := range components {
		if err := readJSONFile(filepath.Join(dir, c.file), c.part(set)); err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", version, c.file, err)
		}
	}
	if set.Manifest.Version != version {
		return nil, fmt.Errorf("manifest version %q does not match directory %q", set.Manifest.Version, version)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *FSStore) current() (string, error) {
	b, err := os.ReadFile(s.path(currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoActiveVersion
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", currentFile, err)
	}
	v := strings.TrimSpace(string(b))
	if err := validVersion(v); err != nil {
		return "", err
	}
	return v, nil
}

// setCurrent atomically replaces CURRENT.
func (s *FSStore) setCurrent(version string) error {
	tmp := s.path(currentFile + ".tmp-" + uuid.NewString())
	if err := writeFileSync(tmp, []byte(version+"\n")); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", currentFile, err)
	}
	if err := os.Rename(tmp, s.path(currentFile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", currentFile, err)
	}
	return syncDir(s.dir)
}

// versionNames lists version directories, newest first.
func (s *FSStore) versionNames() ([]string, error) {
	entries, err := os.ReadDir(s.path(versionsDir))
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// prune removes the oldest versions beyond the retention limit, never the
// active one. Callers hold the writer lock.
func (s *FSStore) prune(ctx context.Context, active string) {
	if s.retention <= 0 {
		return
	}
	names, err := s.versionNames()
	if err != nil {
		s.log.Warn(ctx, "retention skipped", logger.Error(err))
		return
	}

	kept := 0
	var doomed []string
	for _, name := range names {
		if name == active {
			kept++
			continue
		}
		if kept < s.retention {
			kept++
			continue
		}
		doomed = append(doomed, name)
	}
	if len(doomed) == 0 {
		return
	}

	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()
	for _, name := range doomed {
		s.cache.remove(name)
		if err := os.RemoveAll(s.path(versionsDir, name)); err != nil {
			s.log.Warn(ctx, "remove old version failed", logger.String("version", name), logger.Error(err))
			continue
		}
		s.log.Debug(ctx, "old version removed", logger.String("version", name))
	}
}

// lock takes the exclusive writer lock on LOCK, polling until it is free or
// ctx is done. Every call opens its own descriptor, so two stores in one
// process exclude each other as well.
func (s *FSStore) lock(ctx context.Context) (func(), error) {
	fl := flock.New(s.path(lockFile))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("lock %s: %w", lockFile, err)
	}
	if !ok {
		_ = fl.Close()
		return nil, fmt.Errorf("lock %s: not acquired", lockFile)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *FSStore) clearStaging(ctx context.Context) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := os.ReadDir(s.path(stagingDir))
	if err != nil {
		return fmt.Errorf("list staging: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(s.path(stagingDir, e.Name())); err != nil {
			return fmt.Errorf("clear staging: %w", err)
		}
	}
	return nil
}

// startMetricsUpdater starts a background goroutine that refreshes store gauges.
func (s *FSStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()
}

func (s *FSStore) updateMetrics(ctx context.Context) {
	names, err := s.versionNames()
	if err != nil {
		s.log.Debug(ctx, "version count unavailable", logger.Error(err))
		return
	}
	metrics.UpdateArtifactVersions(len(names))
}

func (s *FSStore) path(elem ...string) string {
	return filepath.Join(append([]string{s.dir}, elem...)...)
}

func validVersion(v string) error {
	if v == "" || v == "." || v == ".." || strings.ContainsAny(v, `/\`) || strings.HasPrefix(v, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm) //nolint:gosec // path is built by the store
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readJSONFile(path string, v any) error {
	f, err := os.Open(path) //nolint:gosec // path is built by the store
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := json.NewDecoder(bufio.NewReader(f))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm) //nolint:gosec // path is built by the store
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir) //nolint:gosec // path is built by the store
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
