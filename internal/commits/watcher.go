package commits

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/carbon-aware-dev/internal/store"
)

// Watcher observes a git repository's reflog and reports each distinct
// new commit to the tracker exactly once. Change notifications are
// debounced: bursts within the quiet period collapse into one check, so a
// single real commit does not trigger more than one classification.
type Watcher struct {
	repoPath string
	debounce time.Duration
	tracker  *Tracker
	stats    *store.StatsStore
	fsw      *fsnotify.Watcher
}

func NewWatcher(repoPath string, debounce time.Duration, tracker *Tracker, stats *store.StatsStore) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		repoPath: repoPath,
		debounce: debounce,
		tracker:  tracker,
		stats:    stats,
	}
}

// Start begins watching the repository's HEAD reflog. It returns an error
// when the repository has no reflog to watch.
func (w *Watcher) Start(ctx context.Context) error {
	logPath := filepath.Join(w.repoPath, ".git", "logs", "HEAD")
	if _, err := os.Stat(logPath); err != nil {
		return fmt.Errorf("git reflog not found at %s: %w", logPath, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: git replaces the file on some operations,
	// which would drop a watch on the file itself.
	if err := fsw.Add(filepath.Dir(logPath)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(logPath), err)
	}

	w.fsw = fsw
	go w.loop(ctx, logPath)

	log.Info().Str("repo", w.repoPath).Msg("watching for commits")
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context, logPath string) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(logPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("commit watcher error")

		case <-timer.C:
			pending = false
			w.checkForNewCommit(logPath)
		}
	}
}

// checkForNewCommit reads the newest hash from the reflog and, when it
// differs from the last observed one, records it and classifies the
// commit.
func (w *Watcher) checkForNewCommit(logPath string) {
	hash, err := headCommit(logPath)
	if err != nil {
		log.Debug().Err(err).Msg("could not read HEAD commit")
		return
	}
	if hash == "" || hash == w.stats.LastCommitHash() {
		return
	}

	if err := w.stats.SetLastCommitHash(hash); err != nil {
		log.Warn().Err(err).Msg("failed to record commit hash")
		return
	}
	if err := w.tracker.CommitDetected(); err != nil {
		log.Warn().Err(err).Msg("failed to track commit")
	}
}

// headCommit extracts the newest commit hash from the tail of a HEAD
// reflog. Each reflog line starts with "<old-hash> <new-hash> ...".
func headCommit(logPath string) (string, error) {
	raw, err := os.ReadFile(logPath)
	if err != nil {
		return "", err
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) == 0 {
		return "", fmt.Errorf("empty reflog")
	}

	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 2 {
		return "", fmt.Errorf("malformed reflog line")
	}
	return fields[1], nil
}
