// Package watcher auto-ingests files dropped into a per-user inbox
// directory. Each immediate subdirectory of the inbox root is named by
// a user id; files placed inside it are ingested on that user's behalf
// and removed once stored. Files that fail ingestion are renamed with a
// ".rejected" suffix so they are not retried in a loop.
package watcher

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

const (
	// defaultSettle is how long a file must sit unchanged before it is
	// read. Uploads via drag-and-drop or scp arrive in several writes.
	defaultSettle = 2 * time.Second

	rejectedSuffix = ".rejected"
)

// Watcher tails an inbox root for new user files.
type Watcher struct {
	ingestion driving.IngestionService
	users     driven.UserStore // optional role lookup
	root      string
	settle    time.Duration

	fw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	wg sync.WaitGroup
}

// Option tweaks a Watcher.
type Option func(*Watcher)

// WithSettle overrides the stability window before a file is read.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithUserLookup resolves each inbox directory's role from the user
// store instead of assuming patient.
func WithUserLookup(users driven.UserStore) Option {
	return func(w *Watcher) { w.users = users }
}

// New creates a watcher over root. The directory is created if absent.
func New(ingestion driving.IngestionService, root string, opts ...Option) (*Watcher, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		root = filepath.Join(home, ".carevault", "inbox")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating inbox directory: %w", err)
	}

	w := &Watcher{
		ingestion: ingestion,
		root:      root,
		settle:    defaultSettle,
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. It ingests files already sitting in the inbox,
// then reacts to filesystem events until ctx is cancelled. Start
// returns immediately; use Close to wait for in-flight work.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	w.fw = fw

	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return fmt.Errorf("watching %s: %w", w.root, err)
	}

	// Watch existing user directories and sweep files left over from a
	// previous run.
	entries, err := os.ReadDir(w.root)
	if err != nil {
		fw.Close()
		return fmt.Errorf("reading inbox: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, entry.Name())
		if err := fw.Add(dir); err != nil {
			logger.Warn("inbox: cannot watch %s: %v", dir, err)
			continue
		}
		w.sweep(ctx, dir)
	}

	w.wg.Add(1)
	go w.loop(ctx)

	logger.Info("inbox: watching %s", w.root)
	return nil
}

// Close stops the watcher and waits for scheduled ingestions.
func (w *Watcher) Close() error {
	var err error
	if w.fw != nil {
		err = w.fw.Close()
	}
	w.mu.Lock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("inbox: watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Deletions, renames and permission changes never yield new content.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return // gone already
	}

	if info.IsDir() {
		// A new user directory appeared directly under the root.
		if filepath.Dir(event.Name) == w.root && event.Has(fsnotify.Create) {
			if err := w.fw.Add(event.Name); err != nil {
				logger.Warn("inbox: cannot watch %s: %v", event.Name, err)
				return
			}
			// Catch files dropped before the watch was registered.
			w.sweep(ctx, event.Name)
		}
		return
	}

	if !w.ingestible(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// ingestible reports whether path is a candidate file: inside a user
// subdirectory, not hidden, not a prior rejection.
func (w *Watcher) ingestible(path string) bool {
	dir := filepath.Dir(path)
	if dir == w.root || filepath.Dir(dir) != w.root {
		return false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, rejectedSuffix) {
		return false
	}
	return true
}

// schedule (re)arms the settle timer for path. Every Write resets it,
// so the file is only read once writes stop arriving.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	})
}

// sweep ingests files already present in a user directory.
func (w *Watcher) sweep(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("inbox: cannot read %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if w.ingestible(path) {
			w.schedule(ctx, path)
		}
	}
}

// roleOf resolves the directory owner's role. Users the store has never
// seen default to patient, the role that grants no visibility beyond
// its own documents.
func (w *Watcher) roleOf(ctx context.Context, userID string) domain.Role {
	if w.users == nil {
		return domain.RolePatient
	}
	user, err := w.users.Get(ctx, userID)
	if err != nil {
		return domain.RolePatient
	}
	return user.Role
}

func (w *Watcher) process(ctx context.Context, path string) {
	userID := filepath.Base(filepath.Dir(path))
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("inbox: reading %s: %v", path, err)
		return
	}

	req := driving.IngestRequest{
		Owner:       domain.Identity{UserID: userID, Role: w.roleOf(ctx, userID)},
		Filename:    name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Data:        data,
	}

	result, err := w.ingestion.Ingest(ctx, req)
	if err != nil {
		logger.Error("inbox: ingesting %s for %s: %v", name, userID, err)
		if renameErr := os.Rename(path, path+rejectedSuffix); renameErr != nil {
			logger.Warn("inbox: marking %s rejected: %v", path, renameErr)
		}
		return
	}

	logger.Info("inbox: ingested %s for %s as %s (%d chunks)",
		name, userID, result.Document.ID, result.ChunkCount)
	if result.Warning != "" {
		logger.Warn("inbox: %s: %s", name, result.Warning)
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("inbox: removing %s after ingestion: %v", path, err)
	}
}
