package model

// TokenWeight is one token's participation in a requested swap.
// The meaning of Weight depends on position: on the from side the first
// token's weight is the absolute source quantity; on the to side each
// weight is a 0-100 percentage share of the source value. Both sides of
// the protocol rely on this exact asymmetry, so it must not be normalized.
type TokenWeight struct {
	Address string  `json:"address"`
	Weight  float64 `json:"weight"`
}

// TokenAmount is a computed absolute quantity of one token.
type TokenAmount struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// WeightedSide is one side of a requested swap on a given network.
type WeightedSide struct {
	Network string        `json:"network"`
	Tokens  []TokenWeight `json:"tokens"`
}

// AmountSide is one side of a priced swap on a given network.
type AmountSide struct {
	Network string        `json:"network"`
	Tokens  []TokenAmount `json:"tokens"`
}

// QuoteRequest is an immutable, self-contained description of a desired
// swap. Bucket is the correlation key chosen by the requester; the solver
// publishes its response on the topic derived from it. From.Tokens carries
// exactly one entry in the reference flow (the source amount basis),
// though the schema permits more.
type QuoteRequest struct {
	Bucket string       `json:"bucket"`
	From   WeightedSide `json:"from"`
	To     WeightedSide `json:"to"`
}

// QuoteResponse is a priced, fee-adjusted answer to a QuoteRequest.
// Solver carries the responding party's public key material. From.Tokens
// echoes the request's source weights reinterpreted as amounts.
type QuoteResponse struct {
	Solver string     `json:"solver"`
	From   AmountSide `json:"from"`
	To     AmountSide `json:"to"`
}

// Price is a spot price in the reference fiat unit for one token address.
// Addresses are compared case-insensitively.
type Price struct {
	Address string  `json:"address"`
	Price   float64 `json:"price"`
}
