package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Reload is delivered when the watched document changes on disk.
type Reload struct {
	Doc Document
	Err error
}

// Watcher reloads a flyer document whenever it is written. The parent
// directory is watched so editors that save by rename are seen too.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	updates chan Reload
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewWatcher starts watching path.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		fsw:     fsw,
		updates: make(chan Reload, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Updates returns the reload channel. It is closed by Close.
func (w *Watcher) Updates() <-chan Reload {
	return w.updates
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		close(w.updates)
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			doc, err := LoadDocument(w.path)
			w.send(Reload{Doc: doc, Err: err})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				doc, lerr := LoadDocument(w.path)
				w.send(Reload{Doc: doc, Err: lerr})
				continue
			}
			w.send(Reload{Err: err})
		}
	}
}

// send keeps only the newest reload when the consumer lags.
func (w *Watcher) send(r Reload) {
	for {
		select {
		case w.updates <- r:
			return
		case <-w.done:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}
