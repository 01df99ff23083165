package cdp

import (
	"sync"

	"github.com/chromedp/cdproto"
)

// Event is a CDP event received from the browser.
type Event struct {
	Name      cdproto.MethodType
	Data      any
	SessionID string
}

type subKey struct {
	sessionID string
	name      cdproto.MethodType
}

// eventWatcher fans out received events to subscribers of a session.
type eventWatcher struct {
	subsMu sync.Mutex
	subs   map[subKey]map[int64]chan *Event
	nextID int64
}

func newEventWatcher() *eventWatcher {
	return &eventWatcher{
		subs: make(map[subKey]map[int64]chan *Event),
	}
}

func (w *eventWatcher) subscribe(sessionID string, events ...cdproto.MethodType) (<-chan *Event, func()) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()

	w.nextID++
	id := w.nextID
	ch := make(chan *Event, 16)
	for _, evt := range events {
		k := subKey{sessionID, evt}
		if w.subs[k] == nil {
			w.subs[k] = make(map[int64]chan *Event)
		}
		w.subs[k][id] = ch
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.subsMu.Lock()
			defer w.subsMu.Unlock()
			for _, evt := range events {
				k := subKey{sessionID, evt}
				delete(w.subs[k], id)
				if len(w.subs[k]) == 0 {
					delete(w.subs, k)
				}
			}
			close(ch)
		})
	}

	return ch, cancel
}

// notify never blocks; a subscriber with a full buffer misses the event.
func (w *eventWatcher) notify(evt *Event) (dropped int) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()

	for _, ch := range w.subs[subKey{evt.SessionID, evt.Name}] {
		select {
		case ch <- evt:
		default:
			dropped++
		}
	}

	return dropped
}
