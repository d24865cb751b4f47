package options

import (
	"github.com/fsnotify/fsnotify"

	"github.com/kiosk404/pluginkit/pkg/log"
)

// WatchConfigFile watches path for writes and logs a warning when it
// changes, for operators running with --config-file. It never triggers
// re-initialization: hot-reloading plugin configuration is out of
// scope (spec.md's core has no notion of live reconfiguration), this
// is validation-only drift detection. The returned stop func closes
// the underlying watcher; it is safe to call at most once.
func WatchConfigFile(path string, logger log.Logger) (stop func(), err error) {
	if logger == nil {
		logger = log.Discard()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) {
					logger.WithField("file", path).Warn(
						"config file changed on disk; pluginkit does not hot-reload, restart to apply")
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithField("file", path).Warn("config watcher error: ", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
