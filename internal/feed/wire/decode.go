// Package wire decodes raw feed frames into domain.Event. JSON is the
// primary, documented wire format; a small number of upstream providers
// instead push protobuf-encoded structpb.Struct frames carrying the same
// field names, so decode falls back to that before giving up.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"solana-token-lab/internal/domain"
)

// frameEnvelope is the common shape every JSON frame carries: a "type"
// discriminator plus a type-specific payload left as raw JSON so it can be
// unmarshaled into the right struct once the type is known.
type frameEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type newTokenPayload struct {
	Mint               string            `json:"mint"`
	Symbol             string            `json:"symbol"`
	Name               string            `json:"name"`
	Platform           string            `json:"platform"`
	PlatformConfidence float64           `json:"platformConfidence"`
	Price              float64           `json:"price"`
	Volume24h          float64           `json:"volume24h"`
	MarketCap          float64           `json:"marketCap"`
	Liquidity          float64           `json:"liquidity"`
	Holders            int64             `json:"holders"`
	URI                string            `json:"uri"`
	Socials            map[string]string `json:"socials"`
	Timestamp          int64             `json:"timestamp"` // unix millis
}

type tradePayload struct {
	Mint      string  `json:"mint"`
	Platform  string  `json:"platform"`
	Side      string  `json:"side"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Wallet    string  `json:"wallet"`
	Signature string  `json:"signature"`
	Timestamp int64   `json:"timestamp"`
}

type ackPayload struct {
	Mint       string `json:"mint"`
	Subscribed bool   `json:"subscribed"`
}

// DecodeJSON parses a JSON frame into a domain.Event. An unrecognized "type"
// decodes to domain.EventUnknown rather than erroring, so a feed schema
// change degrades gracefully.
func DecodeJSON(raw []byte) (domain.Event, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.Event{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	return decodeEnvelope(env, len(raw))
}

// DecodeProtobuf parses a protobuf-encoded structpb.Struct frame, maps its
// fields onto the same envelope shape as DecodeJSON, and decodes from
// there. It exists for upstream providers that push this feed over a
// protobuf transport instead of JSON.
func DecodeProtobuf(raw []byte) (domain.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(raw, &s); err != nil {
		return domain.Event{}, fmt.Errorf("wire: protobuf unmarshal: %w", err)
	}
	asJSON, err := s.MarshalJSON()
	if err != nil {
		return domain.Event{}, fmt.Errorf("wire: protobuf struct to json: %w", err)
	}
	var env frameEnvelope
	if err := json.Unmarshal(asJSON, &env); err != nil {
		return domain.Event{}, fmt.Errorf("wire: decode envelope from protobuf: %w", err)
	}
	return decodeEnvelope(env, len(raw))
}

func decodeEnvelope(env frameEnvelope, rawSize int) (domain.Event, error) {
	now := time.Now()

	switch env.Type {
	case string(domain.EventNewToken):
		var p newTokenPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Event{}, fmt.Errorf("wire: decode new_token payload: %w", err)
		}
		return domain.Event{
			Kind:       domain.EventNewToken,
			ReceivedAt: now,
			RawSize:    rawSize,
			NewToken: &domain.NewTokenEvent{
				Snapshot: domain.TokenSnapshot{
					Mint:               p.Mint,
					Symbol:             p.Symbol,
					Name:               p.Name,
					Platform:           domain.Platform(p.Platform),
					PlatformConfidence: p.PlatformConfidence,
					Price:              p.Price,
					Volume24h:          p.Volume24h,
					MarketCap:          p.MarketCap,
					Liquidity:          p.Liquidity,
					Holders:            p.Holders,
					URI:                p.URI,
					Socials:            p.Socials,
					Timestamp:          millisToTime(p.Timestamp),
				},
			},
		}, nil

	case string(domain.EventTrade):
		var p tradePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Event{}, fmt.Errorf("wire: decode trade payload: %w", err)
		}
		return domain.Event{
			Kind:       domain.EventTrade,
			ReceivedAt: now,
			RawSize:    rawSize,
			Trade: &domain.TradeEvent{
				Trade: domain.Trade{
					Mint:      p.Mint,
					Platform:  domain.Platform(p.Platform),
					Side:      domain.TradeSide(p.Side),
					Amount:    p.Amount,
					Price:     p.Price,
					Wallet:    p.Wallet,
					Signature: p.Signature,
					Timestamp: millisToTime(p.Timestamp),
				},
			},
		}, nil

	case string(domain.EventSubscriptionAck):
		var p ackPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Event{}, fmt.Errorf("wire: decode ack payload: %w", err)
		}
		return domain.Event{
			Kind:       domain.EventSubscriptionAck,
			ReceivedAt: now,
			RawSize:    rawSize,
			Ack: &domain.SubscriptionAckEvent{
				Mint:        p.Mint,
				Subscribed:  p.Subscribed,
				RequestedAt: now,
			},
		}, nil

	default:
		return domain.Event{
			Kind:       domain.EventUnknown,
			ReceivedAt: now,
			RawSize:    rawSize,
		}, nil
	}
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
