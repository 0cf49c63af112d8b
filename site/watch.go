package site

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// Watch builds once, then rebuilds whenever a template, asset, locale file
// or the manifest changes, until ctx is done. Events arriving within
// debounce of each other trigger one rebuild. Build errors are reported
// through onBuild and do not stop watching.
func (b *Builder) Watch(ctx context.Context, debounce time.Duration, onBuild func(Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range b.watchRoots() {
		if err := addTree(watcher, dir, b.cfg.DocsDir); err != nil {
			return err
		}
	}

	rebuild := func() {
		res, err := b.Build()
		if onBuild != nil {
			onBuild(res, err)
		}
	}
	rebuild()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !b.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := addTree(watcher, event.Name, b.cfg.DocsDir); err != nil {
					b.logf("watch %s: %v", event.Name, err)
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logf("watch error: %v", err)

		case <-timer.C:
			rebuild()
		}
	}
}

// watchRoots returns the source tree plus the locales and manifest
// directories when they live outside it.
func (b *Builder) watchRoots() []string {
	roots := []string{b.cfg.SrcDir}
	for _, dir := range []string{b.cfg.LocalesDir, filepath.Dir(b.cfg.LanguagesFile)} {
		if isDir(dir) && !within(dir, b.cfg.SrcDir) {
			roots = append(roots, dir)
		}
	}
	return roots
}

// relevant filters out events in the output tree and editor temp files.
func (b *Builder) relevant(event fsnotify.Event) bool {
	if within(event.Name, b.cfg.DocsDir) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return event.Op != fsnotify.Chmod
}

// addTree watches dir and every directory below it except skip.
func addTree(w *fsnotify.Watcher, dir, skip string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if skip != "" && within(path, skip) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
