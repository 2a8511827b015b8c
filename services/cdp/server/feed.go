package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// RedemptionBookEvent describes an opt-in/opt-out change to a position's
// redemption eligibility, pushed to feed subscribers as it happens.
type RedemptionBookEvent struct {
	Owner      string `json:"owner"`
	PositionID uint64 `json:"positionId"`
	PremiumBps uint32 `json:"premiumBps"`
	Mandatory  bool   `json:"mandatory"`
	OptedOut   bool   `json:"optedOut"`
}

// RedemptionFeed fans out redemption-book change events to any number of
// subscribers without blocking the publisher on a slow reader.
type RedemptionFeed struct {
	mu          sync.Mutex
	subscribers map[chan RedemptionBookEvent]struct{}
}

// NewRedemptionFeed constructs an empty feed.
func NewRedemptionFeed() *RedemptionFeed {
	return &RedemptionFeed{subscribers: make(map[chan RedemptionBookEvent]struct{})}
}

// Subscribe registers a new listener and returns it along with an unsubscribe
// function. The channel is buffered; a subscriber that falls behind has
// events dropped rather than stalling the publisher.
func (f *RedemptionFeed) Subscribe() (<-chan RedemptionBookEvent, func()) {
	ch := make(chan RedemptionBookEvent, 32)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	return ch, func() {
		f.mu.Lock()
		delete(f.subscribers, ch)
		f.mu.Unlock()
		close(ch)
	}
}

// Publish broadcasts an event to every current subscriber.
func (f *RedemptionFeed) Publish(event RedemptionBookEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// ServeHTTP upgrades the request to a websocket and streams redemption-book
// change events to the client until it disconnects.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	events, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeRedemptionEvent(ctx, conn, event); err != nil {
				return
			}
		}
	}
}

func writeRedemptionEvent(ctx context.Context, conn *websocket.Conn, event RedemptionBookEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
