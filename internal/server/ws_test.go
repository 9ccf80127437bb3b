package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queued registers a subscriber with no writer so its queue can be inspected.
func queued(fs *FitStream, size int) *subscriber {
	sub := &subscriber{out: make(chan []byte, size)}
	fs.add(sub)
	return sub
}

func TestPublishSkipsProgressWhenQueueFull(t *testing.T) {
	fs := NewFitStream()
	sub := queued(fs, 1)

	fs.Publish(msgProgress, FitProgressDTO{FitID: "a", Iteration: 1})
	fs.Publish(msgProgress, FitProgressDTO{FitID: "a", Iteration: 2})
	assert.Equal(t, 1, fs.Len())
	require.Len(t, sub.out, 1)

	var ev struct {
		Type string         `json:"type"`
		Data FitProgressDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-sub.out, &ev))
	assert.Equal(t, msgProgress, ev.Type)
	assert.Equal(t, 1, ev.Data.Iteration)
}

func TestPublishDropsStalledSubscriber(t *testing.T) {
	fs := NewFitStream()
	stalled := queued(fs, 1)
	live := queued(fs, 4)

	fs.Publish(msgProgress, FitProgressDTO{FitID: "a"})
	start := time.Now()
	fs.Publish(msgDone, FitDoneDTO{FitID: "a"})
	assert.GreaterOrEqual(t, time.Since(start), writeWait)

	assert.Equal(t, 1, fs.Len())
	assert.Len(t, live.out, 2)
	<-stalled.out
	_, open := <-stalled.out
	assert.False(t, open)

	// dropping again is a no-op
	fs.drop(stalled)
	assert.Equal(t, 1, fs.Len())
}

func TestPublishUnencodableEvent(t *testing.T) {
	fs := NewFitStream()
	sub := queued(fs, 1)
	fs.Publish(msgError, make(chan int))
	assert.Empty(t, sub.out)
	assert.Equal(t, 1, fs.Len())
}

func TestFitStreamUnsubscribesOnClose(t *testing.T) {
	srv := New(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/fit", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.events.Len() == 1 }, time.Second, 5*time.Millisecond)

	srv.events.Publish(msgCanceled, FitDoneDTO{FitID: "x"})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev FitEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, msgCanceled, ev.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.events.Len() == 0 }, time.Second, 5*time.Millisecond)
}
