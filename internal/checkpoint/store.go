package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

const fileExt = ".born"

// FileStore keeps checkpoints as .born files in one directory.
//
// File names encode the position of the run ("epoch=0003-step=00000120.born"),
// so the newest checkpoint can be found without opening every file.
type FileStore struct {
	dir        string
	keep       int
	log        logr.Logger
	newBackOff func() backoff.BackOff
}

// StoreOption configures a FileStore.
type StoreOption func(*FileStore)

// WithKeep retains only the newest n checkpoints. Zero keeps all.
func WithKeep(n int) StoreOption {
	return func(s *FileStore) { s.keep = n }
}

// WithLogger sets the logger used for retries and pruning.
func WithLogger(l logr.Logger) StoreOption {
	return func(s *FileStore) { s.log = l }
}

// WithBackOff overrides the retry policy for filesystem writes.
func WithBackOff(f func() backoff.BackOff) StoreOption {
	return func(s *FileStore) { s.newBackOff = f }
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts ...StoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	s := &FileStore{
		dir: dir,
		log: logr.Discard(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, 5)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the checkpoint directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save encodes snap and writes it atomically, retrying transient write failures.
//
// Encoding errors are permanent and returned without retry.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return "", fmt.Errorf("encode checkpoint: %w", err)
	}

	path := filepath.Join(s.dir, FileName(snap.Epoch, snap.Step))
	attempt := 0
	op := func() error {
		attempt++
		return writeAtomic(path, buf.Bytes())
	}
	notify := func(err error, wait time.Duration) {
		s.log.Info("checkpoint write failed, retrying", "path", path, "attempt", attempt, "wait", wait, "error", err.Error())
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		return "", fmt.Errorf("write checkpoint %s: %w", path, err)
	}

	if err := s.prune(); err != nil {
		s.log.Error(err, "failed to prune old checkpoints", "dir", s.dir)
	}
	return path, nil
}

// Latest loads the newest checkpoint. Returns ErrNoCheckpoint if the directory has none.
func (s *FileStore) Latest(ctx context.Context) (Snapshot, string, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, "", err
	}
	paths, err := s.List()
	if err != nil {
		return Snapshot{}, "", err
	}
	if len(paths) == 0 {
		return Snapshot{}, "", ErrNoCheckpoint
	}
	path := paths[len(paths)-1]
	snap, err := Load(path)
	if err != nil {
		return Snapshot{}, "", err
	}
	return snap, path, nil
}

// List returns checkpoint paths ordered from oldest to newest.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	type entry struct {
		path  string
		epoch int
		step  int64
	}
	var found []entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		epoch, step, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		found = append(found, entry{path: filepath.Join(s.dir, e.Name()), epoch: epoch, step: step})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].epoch != found[j].epoch {
			return found[i].epoch < found[j].epoch
		}
		return found[i].step < found[j].step
	})

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

func (s *FileStore) prune() error {
	if s.keep <= 0 {
		return nil
	}
	paths, err := s.List()
	if err != nil {
		return err
	}
	var errs []error
	for len(paths) > s.keep {
		if err := os.Remove(paths[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		} else {
			s.log.V(1).Info("pruned checkpoint", "path", paths[0])
		}
		paths = paths[1:]
	}
	return errors.Join(errs...)
}

// Load reads and verifies a single checkpoint file.
func Load(path string) (Snapshot, error) {
	//nolint:gosec // G304: checkpoint paths come from the store or the user
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	snap, err := Decode(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}

// FileName returns the canonical file name for a checkpoint position.
func FileName(epoch int, step int64) string {
	return fmt.Sprintf("epoch=%04d-step=%08d%s", epoch, step, fileExt)
}

// ParseFileName extracts the position encoded by FileName.
func ParseFileName(name string) (epoch int, step int64, ok bool) {
	if !strings.HasPrefix(name, "epoch=") || !strings.HasSuffix(name, fileExt) {
		return 0, 0, false
	}
	n, err := fmt.Sscanf(strings.TrimSuffix(name, fileExt), "epoch=%d-step=%d", &epoch, &step)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return epoch, step, true
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+fileExt)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
