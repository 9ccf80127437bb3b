package ui

import (
	"context"
	"sync"

	"github.com/eiannone/keyboard"
)

const keyEsc rune = 27

var (
	keyCh     chan rune
	startOnce sync.Once
	stopOnce  sync.Once
	opened    bool
)

// StartKeyEvents returns a channel that emits single-key runes read without Enter.
// ESC is delivered as rune 27. When no terminal is available the channel never emits.
func StartKeyEvents() chan rune {
	startOnce.Do(func() {
		keyCh = make(chan rune, 64)
		if err := keyboard.Open(); err != nil {
			return
		}
		opened = true
		go func() {
			for {
				char, key, err := keyboard.GetKey()
				if err != nil {
					close(keyCh)
					return
				}
				r := char
				if key == keyboard.KeyEsc {
					r = keyEsc
				} else if key != 0 {
					continue
				}
				select {
				case keyCh <- r:
				default:
				}
			}
		}()
	})
	return keyCh
}

// StopKeyEvents restores the terminal. The key channel is closed once the reader
// notices.
func StopKeyEvents() {
	stopOnce.Do(func() {
		if opened {
			_ = keyboard.Close()
		}
	})
}

// DrainKeys consumes any immediately available keys to avoid accidental triggers.
func DrainKeys() {
	ch := StartKeyEvents()
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// CancelOnKeys returns a context that is canceled when ESC or q is pressed.
// The returned stop func releases the watcher.
func CancelOnKeys(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	DrainKeys()
	ch := StartKeyEvents()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-ch:
				if !ok {
					return
				}
				if IsAbortKey(r) {
					cancel()
					return
				}
			}
		}
	}()
	return ctx, cancel
}

func IsAbortKey(r rune) bool {
	return r == keyEsc || r == 'q' || r == 'Q'
}
