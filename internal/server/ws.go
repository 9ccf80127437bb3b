package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types on /ws/fit.
const (
	msgProgress = "progress"
	msgDone     = "done"
	msgError    = "error"
	msgCanceled = "canceled"
)

const (
	subscriberQueue = 64
	writeWait       = 5 * time.Second
)

// FitEvent is one frame of the fit stream.
type FitEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	out  chan []byte
}

// FitStream fans fit events out to connected browsers. Each subscriber has its
// own queue and writer; one that falls behind or fails a write is dropped.
type FitStream struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewFitStream() *FitStream {
	return &FitStream{subs: make(map[*subscriber]struct{})}
}

// subscribe registers conn and starts its writer. The writer closes conn once
// the subscriber is dropped.
func (fs *FitStream) subscribe(conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn, out: make(chan []byte, subscriberQueue)}
	fs.add(sub)
	go fs.write(sub)
	return sub
}

func (fs *FitStream) add(sub *subscriber) {
	fs.mu.Lock()
	fs.subs[sub] = struct{}{}
	fs.mu.Unlock()
}

// drop unregisters sub. Dropping twice is a no-op.
func (fs *FitStream) drop(sub *subscriber) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dropLocked(sub)
}

func (fs *FitStream) dropLocked(sub *subscriber) {
	if _, ok := fs.subs[sub]; !ok {
		return
	}
	delete(fs.subs, sub)
	close(sub.out)
}

func (fs *FitStream) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.subs)
}

// Publish queues an event for every subscriber. Progress frames are skipped for
// a subscriber whose queue is full; any other event waits up to writeWait and
// then drops the subscriber.
func (fs *FitStream) Publish(typ string, data interface{}) {
	b, err := json.Marshal(FitEvent{Type: typ, Data: data})
	if err != nil {
		log.Printf("ws: encode %s event: %v", typ, err)
		return
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for sub := range fs.subs {
		select {
		case sub.out <- b:
			continue
		default:
		}
		if typ == msgProgress {
			continue
		}
		select {
		case sub.out <- b:
		case <-time.After(writeWait):
			log.Printf("ws: dropping slow subscriber (%d events queued)", len(sub.out))
			fs.dropLocked(sub)
		}
	}
}

func (fs *FitStream) write(sub *subscriber) {
	defer sub.conn.Close()
	for b := range sub.out {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			fs.drop(sub)
			return
		}
	}
	_ = sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
