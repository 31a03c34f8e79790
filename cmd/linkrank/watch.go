package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/linkrank/internal/analysis"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

var (
	watchURL      string
	watchSnapshot bool
	watchPartial  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-rank a saved page whenever it changes",
	Long: `Watch an HTML file or JSON snapshot and re-rank it on every change.

Bursts of writes are debounced (ranking.debounce); a change that arrives while
a ranking is running supersedes it. Final snapshots are printed as JSON lines.

Examples:
  # Re-rank a page saved by the browser
  linkrank watch --url https://example.com/ page.html

  # Follow a snapshot file, including partial rankings
  linkrank watch --snapshot --partial capture.json`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "page URL used to resolve relative links")
	watchCmd.Flags().BoolVar(&watchSnapshot, "snapshot", false, "treat the file as a JSON snapshot")
	watchCmd.Flags().BoolVar(&watchPartial, "partial", false, "print partial snapshots too")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{
		publish:        true,
		stdoutReserved: true,
		sinks:          []consumer.Consumer{consumer.NewJSONLines(cmd.OutOrStdout(), !watchPartial)},
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	w := &fileWatcher{
		path:     path,
		load:     watchLoader(path),
		analyzer: a.analyzer,
		logger:   a.zl().Named("watch"),
	}
	return w.Run(ctx)
}

// watchLoader reads the watched file as HTML or a snapshot.
func watchLoader(path string) func() (page.Handle, error) {
	return func() (page.Handle, error) {
		if watchSnapshot {
			return loadHandle(watchURL, "", path)
		}
		return loadHandle(watchURL, path, "")
	}
}

// trigger schedules a debounced analysis. *analysis.Analyzer implements it.
type trigger interface {
	Trigger(h page.Handle) uint64
}

var _ trigger = (*analysis.Analyzer)(nil)

// fileWatcher triggers an analysis whenever path is written.
type fileWatcher struct {
	path     string
	load     func() (page.Handle, error)
	analyzer trigger
	logger   *zap.Logger
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that replace the file by rename are followed.
func (w *fileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize filesystem watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", w.path, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return watcher.Close()
	})
	g.Go(func() error {
		w.fire()
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if w.relevant(event) {
					w.fire()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("Watcher error", zap.Error(err))
			}
		}
	})

	w.logger.Info("Watching page", zap.String("path", w.path))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *fileWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *fileWatcher) fire() {
	h, err := w.load()
	if err != nil {
		w.logger.Warn("Skipping unreadable page", zap.String("path", w.path), zap.Error(err))
		return
	}
	id := w.analyzer.Trigger(h)
	w.logger.Debug("Page changed", zap.String("path", w.path), zap.Uint64("request_id", id))
}
