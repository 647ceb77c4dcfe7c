package zone

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	zlog "github.com/semihalev/zlog/v2"
)

// Watcher reloads the RBL and aggregate zone files on change and
// hands the rebuilt Registry to onReload, grounded on the teacher's
// certificate file watcher.
type Watcher struct {
	rblPath       string
	aggregatePath string
	customZone    string

	onReload func(*Registry)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewWatcher starts watching rblPath and, if set, aggregatePath, and
// invokes onReload with a freshly built Registry on every change.
func NewWatcher(rblPath, aggregatePath, customZone string, onReload func(*Registry)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := map[string]struct{}{filepath.Dir(rblPath): {}}
	if aggregatePath != "" {
		dirs[filepath.Dir(aggregatePath)] = struct{}{}
	}

	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	w := &Watcher{
		rblPath:       rblPath,
		aggregatePath: aggregatePath,
		customZone:    customZone,
		onReload:      onReload,
		watcher:       fw,
		stopCh:        make(chan struct{}),
	}

	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	defer w.watcher.Close()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			zlog.Info("Zone file changed, reloading", "file", event.Name)
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			zlog.Error("Zone file watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if name == filepath.Base(w.rblPath) {
		return true
	}
	return w.aggregatePath != "" && name == filepath.Base(w.aggregatePath)
}

func (w *Watcher) reload() {
	rbls, err := LoadRBLs(w.rblPath)
	if err != nil {
		zlog.Error("Zone reload failed reading RBL file", "error", err.Error())
		return
	}

	aggregates, err := LoadAggregates(w.aggregatePath, rbls)
	if err != nil {
		zlog.Error("Zone reload failed reading aggregate zones file", "error", err.Error())
		return
	}

	w.onReload(Build(rbls, aggregates, w.customZone))
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
}
