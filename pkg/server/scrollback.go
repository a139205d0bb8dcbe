package server

import (
	"log"
	"time"

	"github.com/adamdray/gaia-mud/pkg/events"
)

// ScrollbackWriter is a global event bus subscriber persisting outbound
// message traffic to SQLite for the /scrollback admin command.
type ScrollbackWriter struct {
	sqldb *SQLStore
}

// NewScrollbackWriter opens the scrollback store, registers it on the bus,
// and starts retention cleanup.
func NewScrollbackWriter(gm *Game, path string, retention time.Duration) (*ScrollbackWriter, error) {
	sqldb, err := OpenSQLStore(path)
	if err != nil {
		return nil, err
	}
	if err := sqldb.InitScrollbackTables(); err != nil {
		sqldb.Close()
		return nil, err
	}

	sw := &ScrollbackWriter{sqldb: sqldb}
	gm.Bus.SubscribeGlobal(sw)
	sw.startRetention(gm, retention)
	log.Printf("scrollback: writer registered on event bus (db %s)", path)
	return sw, nil
}

// Receive implements events.Subscriber. Only message-bearing events are
// stored.
func (sw *ScrollbackWriter) Receive(ev events.Event) {
	switch ev.Type {
	case events.EvMessage, events.EvText:
	default:
		return
	}
	if ev.Text == "" {
		return
	}
	if err := sw.sqldb.InsertScrollback(ev.Target, ev.Source, ev.Type.String(), ev.Text); err != nil {
		log.Printf("scrollback: insert error: %v", err)
	}
}

// Closed implements events.Subscriber.
func (sw *ScrollbackWriter) Closed() bool { return false }

// Recent returns the newest n scrollback lines.
func (sw *ScrollbackWriter) Recent(n int) ([]string, error) {
	return sw.sqldb.RecentScrollback(n)
}

// Close closes the underlying store.
func (sw *ScrollbackWriter) Close() error { return sw.sqldb.Close() }

// startRetention deletes entries past the retention window on a timer.
func (sw *ScrollbackWriter) startRetention(gm *Game, retention time.Duration) {
	if retention <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := sw.sqldb.DeleteScrollbackBefore(time.Now().Add(-retention))
				if err != nil {
					log.Printf("scrollback: retention cleanup: %v", err)
				} else if n > 0 {
					log.Printf("scrollback: removed %d expired lines", n)
				}
			case <-gm.Shutdown:
				return
			}
		}
	}()
}
