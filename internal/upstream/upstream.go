// Package upstream maintains the one WebSocket session this gateway keeps
// open to the upstream RFQ auction service, splitting it into a reader and
// a writer goroutine sharing the connection. Grounded on the dial/reconnect
// shape of gorilla/websocket clients in the retrieved pack (in particular
// chainadapter/rpc's WebSocketRPCClient), adapted from a JSON-RPC
// request/response client to this gateway's fire-and-forget Envelope
// framing.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liquorice-gateway/gateway/internal/logging"
	"github.com/liquorice-gateway/gateway/internal/protocol/liquorice"
)

const (
	feedURL          = "wss://api.liquorice.tech/v1/maker/ws"
	reconnectBackoff = 5 * time.Second
)

// Client owns the rfqs in-queue and the quotes out-queue and keeps exactly
// one session open to feedURL, reconnecting with a 5s backoff on any
// transport failure.
type Client struct {
	sessionID   string
	sessionAuth string
	log         *logging.Logger

	rfqs   chan *liquorice.RFQMessage
	quotes chan *liquorice.RFQQuoteMessage

	dial func(ctx context.Context) (*websocket.Conn, error)
}

// New builds a Client authenticating with the given maker session id and
// auth token. Queues are created once here; nothing downstream recreates
// them (see DESIGN.md's note on the source's queue double-construction).
func New(sessionID, sessionAuth string, log *logging.Logger) *Client {
	c := &Client{
		sessionID:   sessionID,
		sessionAuth: sessionAuth,
		log:         log,
		rfqs:        make(chan *liquorice.RFQMessage, 256),
		quotes:      make(chan *liquorice.RFQQuoteMessage, 256),
	}
	c.dial = c.defaultDial
	return c
}

// RFQs returns the in-queue the Quoter reads from.
func (c *Client) RFQs() <-chan *liquorice.RFQMessage { return c.rfqs }

// Quotes returns the out-queue the Quoter writes signed quotes to.
func (c *Client) Quotes() chan<- *liquorice.RFQQuoteMessage { return c.quotes }

func (c *Client) defaultDial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("maker", c.sessionID)
	header.Set("authorization", c.sessionAuth)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, header)
	return conn, err
}

// Run drives the supervision loop: connect, run reader and writer
// concurrently, and on either completing (success or error) cancel the
// other and reconnect after a 5s backoff. Returns when ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warnf("upstream: connect failed: %v", err)
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		err = c.runSession(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warnf("upstream: session ended: %v", err)
		}
		if !sleepOrDone(ctx, reconnectBackoff) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// runSession runs the reader and writer concurrently for one connection.
// Whichever finishes first cancels the other; its error (if any)
// propagates outward to the supervision loop.
func (c *Client) runSession(ctx context.Context, conn *websocket.Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- c.readLoop(sessionCtx, conn) }()
	go func() { errCh <- c.writeLoop(sessionCtx, conn) }()

	err := <-errCh
	cancel()
	// Closing the connection unblocks a reader waiting in ReadMessage, which
	// does not observe ctx.
	conn.Close()
	<-errCh
	return err
}

type inboundFrame struct {
	MessageType liquorice.MessageType `json:"messageType"`
	Message     json.RawMessage       `json:"message"`
}

// readLoop parses each incoming text frame's messageType first, since
// "connected" and any unrecognized type never have an RFQ-shaped payload
// and would fail Envelope's strict decode. "connected" is ignored, "rfq" is
// validated and pushed to the rfqs queue, and any other or unknown type is
// logged and skipped. The frame itself is never retried — a malformed RFQ
// is dropped, not the connection.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warnf("upstream: dropping unparseable frame: %v", err)
			continue
		}

		switch frame.MessageType {
		case liquorice.MessageTypeRFQ:
			var rfq liquorice.RFQMessage
			if err := json.Unmarshal(frame.Message, &rfq); err != nil {
				c.log.Warnf("upstream: dropping invalid rfq: %v", err)
				continue
			}
			select {
			case c.rfqs <- &rfq:
			case <-ctx.Done():
				return nil
			}
		case "connected":
		default:
			c.log.Warnf("upstream: unknown message type %q", frame.MessageType)
		}
	}
}

// writeLoop blocks on the quotes queue and sends each dequeued quote as a
// single text frame wrapped in an rfqQuote Envelope.
func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case quote := <-c.quotes:
			env := liquorice.NewQuoteEnvelope(quote)
			data, err := json.Marshal(env)
			if err != nil {
				c.log.Errorf("upstream: failed to serialize quote %s: %v", quote.RFQID, err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
