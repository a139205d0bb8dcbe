package server

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TextFiles holds cached text file contents served at connection lifecycle
// points (welcome screen, MOTD, quit message). Edits on disk are picked up
// live by an fsnotify watcher.
type TextFiles struct {
	mu      sync.RWMutex
	connect string // connect.txt — welcome screen
	motd    string // motd.txt — post-login message
	quit    string // quit.txt — quit message
}

var trackedTextFiles = []string{"connect.txt", "motd.txt", "quit.txt"}

// GetConnect returns the welcome screen text.
func (tf *TextFiles) GetConnect() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.connect }

// GetMotd returns the post-login message.
func (tf *TextFiles) GetMotd() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.motd }

// GetQuit returns the quit message.
func (tf *TextFiles) GetQuit() string { tf.mu.RLock(); defer tf.mu.RUnlock(); return tf.quit }

// LoadTextFiles reads the tracked files from dir; missing files are empty
// strings, not errors.
func LoadTextFiles(dir string) *TextFiles {
	tf := &TextFiles{}
	tf.loadAll(dir)
	return tf
}

func (tf *TextFiles) loadAll(dir string) {
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return string(data)
	}
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.connect = read("connect.txt")
	tf.motd = read("motd.txt")
	tf.quit = read("quit.txt")
}

// Watch starts an fsnotify watcher on the text directory, reloading tracked
// files when they change.
func (tf *TextFiles) Watch(dir string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("textfiles: watcher unavailable: %v", err)
		return
	}
	if err := watcher.Add(dir); err != nil {
		log.Printf("textfiles: cannot watch %s: %v", dir, err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				for _, tracked := range trackedTextFiles {
					if name == tracked {
						tf.loadAll(dir)
						log.Printf("textfiles: reloaded %s", name)
						break
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("textfiles: watch error: %v", err)
			}
		}
	}()
	log.Printf("textfiles: watching %s", dir)
}
