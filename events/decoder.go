// Package events decodes receipt logs into typed token movements.
package events

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/tranvictor/clearsign/explorers"
	"github.com/tranvictor/clearsign/tokens"
)

const (
	TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	ApprovalTopic = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"
)

type Kind int

const (
	Unknown Kind = iota
	Transfer
	Approval
)

func (k Kind) String() string {
	switch k {
	case Transfer:
		return "Transfer"
	case Approval:
		return "Approval"
	}
	return "Unknown"
}

// ReceiptEvent is one decoded or opaque log entry. Recognized kinds carry
// typed token movement fields; unknown topics keep their signature hash and
// raw data so their presence still counts as an on-chain effect.
type ReceiptEvent struct {
	Kind     Kind
	Contract string

	Token         string
	From          string
	To            string
	Amount        *big.Int
	AmountDisplay string

	Topic0  string
	RawData string
}

// MetadataSource supplies token metadata for formatting decoded amounts.
type MetadataSource interface {
	Lookup(ctx context.Context, address string) (*tokens.Metadata, error)
}

type Decoder struct {
	metadata MetadataSource
	logger   *zap.Logger
}

func NewDecoder(metadata MetadataSource, logger *zap.Logger) *Decoder {
	return &Decoder{metadata: metadata, logger: logger}
}

// Decode walks a receipt's logs in order and produces one event per log.
// Unrecognized topics are preserved, never dropped.
func (d *Decoder) Decode(ctx context.Context, logs []explorers.Log) []ReceiptEvent {
	events := make([]ReceiptEvent, 0, len(logs))
	for _, log := range logs {
		events = append(events, d.decodeOne(ctx, log))
	}
	return events
}

func (d *Decoder) decodeOne(ctx context.Context, log explorers.Log) ReceiptEvent {
	if len(log.Topics) == 0 {
		return opaque(log)
	}

	topic0 := strings.ToLower(log.Topics[0])
	switch topic0 {
	case TransferTopic:
		if ev, ok := d.decodeMovement(ctx, log, Transfer); ok {
			return ev
		}
	case ApprovalTopic:
		if ev, ok := d.decodeMovement(ctx, log, Approval); ok {
			return ev
		}
	}
	return opaque(log)
}

// decodeMovement handles the shared Transfer/Approval shape: two indexed
// addresses and an amount. Erc721 variants index the amount as a third
// topic instead of putting it in data.
func (d *Decoder) decodeMovement(ctx context.Context, log explorers.Log, kind Kind) (ReceiptEvent, bool) {
	if len(log.Topics) < 3 {
		return ReceiptEvent{}, false
	}

	amountHex := log.Data
	if isEmptyHex(amountHex) && len(log.Topics) >= 4 {
		amountHex = log.Topics[3]
	}
	amount, ok := parseHexAmount(amountHex)
	if !ok {
		return ReceiptEvent{}, false
	}

	token := strings.ToLower(log.Address)
	ev := ReceiptEvent{
		Kind:          kind,
		Contract:      token,
		Token:         token,
		From:          addressFromTopic(log.Topics[1]),
		To:            addressFromTopic(log.Topics[2]),
		Amount:        amount,
		AmountDisplay: amount.String(),
		Topic0:        strings.ToLower(log.Topics[0]),
	}

	meta, err := d.metadata.Lookup(ctx, token)
	if err != nil {
		d.logger.Debug("token metadata unavailable, keeping raw amount",
			zap.String("token", token),
			zap.Error(err),
		)
		return ev, true
	}
	ev.AmountDisplay = fmt.Sprintf("%s %s", tokens.FormatAmount(amount, meta.Decimals), meta.Symbol)
	return ev, true
}

func opaque(log explorers.Log) ReceiptEvent {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = strings.ToLower(log.Topics[0])
	}
	return ReceiptEvent{
		Kind:     Unknown,
		Contract: strings.ToLower(log.Address),
		Topic0:   topic0,
		RawData:  log.Data,
	}
}

// addressFromTopic extracts the address packed into the low 20 bytes of a
// 32 byte topic.
func addressFromTopic(topic string) string {
	t := strings.ToLower(strings.TrimPrefix(topic, "0x"))
	if len(t) < 40 {
		return "0x" + t
	}
	return "0x" + t[len(t)-40:]
}

func isEmptyHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	return strings.Trim(s, "0") == ""
}

func parseHexAmount(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if s == "" {
		return new(big.Int), true
	}
	return new(big.Int).SetString(s, 16)
}
