package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liquorice-gateway/gateway/internal/logging"
	"github.com/liquorice-gateway/gateway/internal/protocol/liquorice"
)

const rfqFrame = `{
	"messageType": "rfq",
	"message": {
		"chainId": 42161,
		"solver": "portus",
		"solverRfqId": "95a0f428-a6c4-4207-81b2-e47436741e9b",
		"rfqId": "846063db-1769-438b-8002-00fd981603df",
		"nonce": "ade8af8413607c37361fcebe3b00cc3de354986c188efe9d6db0fa8c74843ad",
		"baseToken": "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		"quoteToken": "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9",
		"trader": "0x9008D19f58AAbD9eD0D60971565AA8510560ab41",
		"effectiveTrader": "0x9008D19f58AAbD9eD0D60971565AA8510560ab41",
		"baseTokenAmount": "6358600000",
		"quoteTokenAmount": null,
		"expiry": 1750707521
	}
}`

var upgrader = websocket.Upgrader{}

func newTestServer(t *testing.T, onConnect func(conn *websocket.Conn)) (*httptest.Server, string) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		onConnect(conn)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func dialTo(wsURL string) func(ctx context.Context) (*websocket.Conn, error) {
	return func(ctx context.Context) (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return conn, err
	}
}

func TestReadLoopDeliversValidRFQ(t *testing.T) {
	delivered := make(chan struct{})
	srv, wsURL := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(rfqFrame))
		<-delivered
	})
	defer srv.Close()

	c := New("sess", "auth", logging.New())
	c.dial = dialTo(wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case rfq := <-c.RFQs():
		if rfq.RFQID.String() != "846063db-1769-438b-8002-00fd981603df" {
			t.Fatalf("unexpected rfqId: %s", rfq.RFQID)
		}
		close(delivered)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for rfq")
	}
}

func TestReadLoopIgnoresConnectedAndUnknown(t *testing.T) {
	gotRFQ := make(chan struct{})
	srv, wsURL := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"messageType":"connected","message":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"messageType":"bogus","message":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(rfqFrame))
		<-gotRFQ
	})
	defer srv.Close()

	c := New("sess", "auth", logging.New())
	c.dial = dialTo(wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-c.RFQs():
		close(gotRFQ)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for rfq after connected/unknown frames")
	}
}

func TestWriteLoopSendsRFQQuoteEnvelope(t *testing.T) {
	received := make(chan []byte, 1)
	srv, wsURL := newTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
	})
	defer srv.Close()

	c := New("sess", "auth", logging.New())
	c.dial = dialTo(wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	rfqID := uuid.MustParse("846063db-1769-438b-8002-00fd981603df")
	quote := &liquorice.RFQQuoteMessage{RFQID: rfqID, Levels: []liquorice.QuoteLevelLite{}}

	select {
	case c.Quotes() <- quote:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out sending quote to writer")
	}

	select {
	case data := <-received:
		var frame struct {
			MessageType string `json:"messageType"`
			Message     struct {
				RFQID string `json:"rfqId"`
			} `json:"message"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal sent frame: %v", err)
		}
		if frame.MessageType != "rfqQuote" {
			t.Fatalf("expected messageType rfqQuote, got %q", frame.MessageType)
		}
		if frame.Message.RFQID != rfqID.String() {
			t.Fatalf("expected rfqId %s, got %s", rfqID, frame.Message.RFQID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for server to receive frame")
	}
}
