package skill

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch re-runs Discover whenever a file under any of globalDirs or
// projectDirs changes, until ctx is cancelled. Discovery errors are logged
// and do not stop the watch -- a malformed edit mid-write should not wedge
// the registry on its last-known-good state.
func (r *Registry) Watch(ctx context.Context, globalDirs, projectDirs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	allDirs := append(append([]string{}, globalDirs...), projectDirs...)
	for _, dir := range allDirs {
		// fsnotify watches are not recursive; add every subdirectory so
		// edits to a skill's own SKILL.md are seen.
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			return watcher.Add(p)
		})
		if err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("skill: not watching directory")
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				if err := r.Discover(globalDirs, projectDirs); err != nil {
					log.Warn().Err(err).Msg("skill: re-discovery after workspace change failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("skill: watcher error")
			}
		}
	}()

	return nil
}
