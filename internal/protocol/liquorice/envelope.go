package liquorice

import (
	"encoding/json"
	"fmt"
)

// MessageType tags the payload carried by an Envelope.
type MessageType string

const (
	MessageTypeRFQ      MessageType = "rfq"
	MessageTypeRFQQuote MessageType = "rfqQuote"
	MessageTypeUnknown  MessageType = "unknown"
)

// Envelope wraps a single upstream message with a type tag, so the
// duplex client can dispatch on MessageType without guessing from shape.
// Exactly one of RFQ or Quote is non-nil; which one must agree with
// MessageType, and MarshalJSON rejects an envelope where they disagree.
type Envelope struct {
	MessageType MessageType
	RFQ         *RFQMessage
	Quote       *RFQQuoteMessage
}

// NewRFQEnvelope wraps an inbound RFQ, inferring MessageType.
func NewRFQEnvelope(rfq *RFQMessage) *Envelope {
	return &Envelope{MessageType: MessageTypeRFQ, RFQ: rfq}
}

// NewQuoteEnvelope wraps an outbound quote response, inferring MessageType.
func NewQuoteEnvelope(quote *RFQQuoteMessage) *Envelope {
	return &Envelope{MessageType: MessageTypeRFQQuote, Quote: quote}
}

type envelopeWire struct {
	MessageType MessageType     `json:"messageType"`
	Message     json.RawMessage `json:"message"`
}

// MarshalJSON emits {"messageType": ..., "message": ...}, failing if the
// envelope was built with a missing or inconsistent payload.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.MessageType {
	case MessageTypeRFQ:
		if e.RFQ == nil {
			return nil, fmt.Errorf("message type mismatch")
		}
		return marshalEnvelope(e.MessageType, e.RFQ)
	case MessageTypeRFQQuote:
		if e.Quote == nil {
			return nil, fmt.Errorf("message type mismatch")
		}
		return marshalEnvelope(e.MessageType, e.Quote)
	default:
		return nil, fmt.Errorf("unknown message type, cannot infer message type")
	}
}

func marshalEnvelope(mt MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope payload: %w", err)
	}
	return json.Marshal(envelopeWire{MessageType: mt, Message: raw})
}

// UnmarshalJSON decodes an envelope, dispatching on messageType and
// rejecting any type this gateway does not recognize. Used by tests; the
// live duplex client decodes messageType first
// and routes without building an intermediate Envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding envelope: %w", err)
	}

	switch w.MessageType {
	case MessageTypeRFQ:
		var rfq RFQMessage
		if err := json.Unmarshal(w.Message, &rfq); err != nil {
			return fmt.Errorf("decoding rfq envelope: %w", err)
		}
		e.MessageType = MessageTypeRFQ
		e.RFQ = &rfq
		e.Quote = nil
		return nil
	case MessageTypeRFQQuote:
		var quote RFQQuoteMessage
		if err := json.Unmarshal(w.Message, &quote); err != nil {
			return fmt.Errorf("decoding quote envelope: %w", err)
		}
		e.MessageType = MessageTypeRFQQuote
		e.Quote = &quote
		e.RFQ = nil
		return nil
	default:
		return fmt.Errorf("unknown message type %q, cannot infer message type", w.MessageType)
	}
}
