package websocket

import (
	"errors"

	"github.com/brianly1003/workspaced/internal/domain"
	"github.com/brianly1003/workspaced/internal/domain/events"
	"github.com/brianly1003/workspaced/internal/server/common"
)

// ClientSubscriber wraps a WebSocket client as an EventHub subscriber.
type ClientSubscriber struct {
	client *Client
}

// NewClientSubscriber creates a subscriber from a WebSocket client.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	return &ClientSubscriber{client: client}
}

// ID returns the subscriber's unique identifier.
func (s *ClientSubscriber) ID() string {
	return s.client.ID()
}

// Send serializes an event and queues it for the client. A full send
// buffer drops the event without error; the hub must not unsubscribe a
// client that is merely slow.
func (s *ClientSubscriber) Send(event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}

	if err := s.client.SendRaw(data); err != nil {
		if errors.Is(err, common.ErrBufferFull) {
			return nil
		}
		return domain.ErrSubscriberClosed
	}
	return nil
}

// Close closes the subscriber.
func (s *ClientSubscriber) Close() error {
	return s.client.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.client.Done()
}
