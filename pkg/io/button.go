package io

import (
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const debounce = 10 * time.Millisecond

// Button is a pulled-up, active-low push button.
type Button struct {
	pressed bool
	last    time.Duration
	Event   chan ButtonEvent
}

type ButtonEvent struct {
	Pressed bool
	// time spent in the previous state
	Duration time.Duration
}

func newButton() *Button {
	return &Button{Event: make(chan ButtonEvent, 1)}
}

// eventHandler runs on the gpiocdev watcher goroutine and must not block.
func (b *Button) eventHandler(evt gpiocdev.LineEvent) {
	pressed := evt.Type == gpiocdev.LineEventFallingEdge
	if pressed == b.pressed {
		return
	}
	held := evt.Timestamp - b.last
	if b.last != 0 && held < debounce {
		return
	}
	b.pressed, b.last = pressed, evt.Timestamp
	select {
	case b.Event <- ButtonEvent{Pressed: pressed, Duration: held}:
	default:
	}
}

// WatchButton requests offset as a pulled-up input and reports debounced
// presses and releases on the returned button's Event channel.
func (g *GPIO) WatchButton(offset int) (*Button, error) {
	b := newButton()
	_, err := g.request(offset,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(b.eventHandler),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
