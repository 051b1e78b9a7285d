// Package codec defines the wire schema for quote requests and responses.
//
// Numeric token fields travel as fixed-width integers: fractional weights and
// amounts are truncated on encode. That precision loss is part of the wire
// contract both sides already agree on, so it must not be "fixed" on one side
// only.
package codec

import (
	"errors"
	"fmt"

	"github.com/sugawarayuuta/sonnet"

	"github.com/ilayer-labs/rfq-exchange/pkg/model"
)

// ErrDecode marks a malformed wire message. Callers drop the message and keep
// the subscription alive; this error must never tear down a listening loop.
var ErrDecode = errors.New("codec: malformed message")

type wireTokenWeight struct {
	Address string `json:"address"`
	Weight  int64  `json:"weight"`
}

type wireTokenAmount struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

type wireWeightedSide struct {
	Network string            `json:"network"`
	Tokens  []wireTokenWeight `json:"tokens"`
}

type wireAmountSide struct {
	Network string            `json:"network"`
	Tokens  []wireTokenAmount `json:"tokens"`
}

type wireRequest struct {
	Bucket string           `json:"bucket"`
	From   wireWeightedSide `json:"from"`
	To     wireWeightedSide `json:"to"`
}

type wireResponse struct {
	Solver string         `json:"solver"`
	From   wireAmountSide `json:"from"`
	To     wireAmountSide `json:"to"`
}

// EncodeRequest serializes a quote request for the broadcast topic.
func EncodeRequest(req *model.QuoteRequest) ([]byte, error) {
	w := wireRequest{
		Bucket: req.Bucket,
		From:   toWireWeighted(req.From),
		To:     toWireWeighted(req.To),
	}
	data, err := sonnet.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest parses a quote request received from the broadcast topic.
func DecodeRequest(data []byte) (*model.QuoteRequest, error) {
	var w wireRequest
	if err := sonnet.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &model.QuoteRequest{
		Bucket: w.Bucket,
		From:   fromWireWeighted(w.From),
		To:     fromWireWeighted(w.To),
	}, nil
}

// EncodeResponse serializes a quote response for a bucket topic.
func EncodeResponse(resp *model.QuoteResponse) ([]byte, error) {
	w := wireResponse{
		Solver: resp.Solver,
		From:   toWireAmount(resp.From),
		To:     toWireAmount(resp.To),
	}
	data, err := sonnet.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// DecodeResponse parses a quote response received from a bucket topic.
func DecodeResponse(data []byte) (*model.QuoteResponse, error) {
	var w wireResponse
	if err := sonnet.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &model.QuoteResponse{
		Solver: w.Solver,
		From:   fromWireAmount(w.From),
		To:     fromWireAmount(w.To),
	}, nil
}

func toWireWeighted(s model.WeightedSide) wireWeightedSide {
	out := wireWeightedSide{Network: s.Network, Tokens: make([]wireTokenWeight, 0, len(s.Tokens))}
	for _, t := range s.Tokens {
		out.Tokens = append(out.Tokens, wireTokenWeight{Address: t.Address, Weight: int64(t.Weight)})
	}
	return out
}

func fromWireWeighted(s wireWeightedSide) model.WeightedSide {
	out := model.WeightedSide{Network: s.Network, Tokens: make([]model.TokenWeight, 0, len(s.Tokens))}
	for _, t := range s.Tokens {
		out.Tokens = append(out.Tokens, model.TokenWeight{Address: t.Address, Weight: float64(t.Weight)})
	}
	return out
}

func toWireAmount(s model.AmountSide) wireAmountSide {
	out := wireAmountSide{Network: s.Network, Tokens: make([]wireTokenAmount, 0, len(s.Tokens))}
	for _, t := range s.Tokens {
		out.Tokens = append(out.Tokens, wireTokenAmount{Address: t.Address, Amount: int64(t.Amount)})
	}
	return out
}

func fromWireAmount(s wireAmountSide) model.AmountSide {
	out := model.AmountSide{Network: s.Network, Tokens: make([]model.TokenAmount, 0, len(s.Tokens))}
	for _, t := range s.Tokens {
		out.Tokens = append(out.Tokens, model.TokenAmount{Address: t.Address, Amount: float64(t.Amount)})
	}
	return out
}
