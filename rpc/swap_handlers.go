package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"time"

	"swapd/native/swap"
)

type createParams struct {
	Direction     string   `json:"direction"`
	Amount        string   `json:"amount"`
	TimelockHours *float64 `json:"timelockHours,omitempty"`
	PartialFills  *bool    `json:"partialFills,omitempty"`
}

type orderParams struct {
	ID string `json:"id"`
}

type fillParams struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
}

type claimParams struct {
	ID      string `json:"id"`
	FillSeq *int   `json:"fillSeq,omitempty"`
	Secret  string `json:"secret"`
}

type fillView struct {
	Seq       uint32 `json:"seq"`
	Amount    string `json:"amount"`
	Hashlock  string `json:"hashlock"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	ClaimedAt int64  `json:"claimedAt,omitempty"`
	ClaimTx   string `json:"claimTx,omitempty"`
}

type orderView struct {
	ID            string     `json:"id"`
	Direction     string     `json:"direction"`
	Amount        string     `json:"amount"`
	Hashlock      string     `json:"hashlock"`
	Expiry        int64      `json:"expiry"`
	CounterExpiry int64      `json:"counterExpiry"`
	PartialFills  bool       `json:"partialFills"`
	CreatedAt     int64      `json:"createdAt"`
	UpdatedAt     int64      `json:"updatedAt"`
	Status        string     `json:"status"`
	Filled        string     `json:"filled"`
	Remaining     string     `json:"remaining"`
	Fills         []fillView `json:"fills,omitempty"`
	Halted        bool       `json:"halted,omitempty"`
}

type receiptView struct {
	TxHash      string `json:"txHash"`
	Chain       string `json:"chain"`
	SubmittedAt int64  `json:"submittedAt"`
}

type createResult struct {
	Order  orderView `json:"order"`
	Secret string    `json:"secret"`
}

type fillResult struct {
	Order  orderView `json:"order"`
	Fill   fillView  `json:"fill"`
	Secret string    `json:"secret"`
}

type settleResult struct {
	Order   orderView    `json:"order"`
	Receipt *receiptView `json:"receipt,omitempty"`
}

type statusResult struct {
	Order     orderView `json:"order"`
	Phase     string    `json:"phase"`
	ExpiresIn int64     `json:"expiresIn"`
	Remaining string    `json:"remaining"`
	Reserved  string    `json:"reserved"`
}

func newOrderView(order *swap.SwapOrder) orderView {
	view := orderView{
		ID:            hex.EncodeToString(order.ID[:]),
		Direction:     string(order.Direction),
		Amount:        order.Amount.String(),
		Hashlock:      hex.EncodeToString(order.Hashlock[:]),
		Expiry:        order.Expiry,
		CounterExpiry: order.CounterExpiry,
		PartialFills:  order.PartialFills,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		Status:        order.Status.String(),
		Filled:        order.Filled.String(),
		Remaining:     order.Remaining().String(),
		Halted:        order.Halted,
	}
	for i := range order.Fills {
		view.Fills = append(view.Fills, newFillView(&order.Fills[i]))
	}
	return view
}

func newFillView(fill *swap.Fill) fillView {
	return fillView{
		Seq:       fill.Seq,
		Amount:    fill.Amount.String(),
		Hashlock:  hex.EncodeToString(fill.Hashlock[:]),
		Status:    fill.Status.String(),
		CreatedAt: fill.CreatedAt,
		ClaimedAt: fill.ClaimedAt,
		ClaimTx:   fill.ClaimTx,
	}
}

func newReceiptView(receipt *swap.Receipt) *receiptView {
	if receipt == nil {
		return nil
	}
	return &receiptView{TxHash: receipt.TxHash, Chain: receipt.Chain, SubmittedAt: receipt.SubmittedAt}
}

func decodeParams(req *Request, out any) *Error {
	if len(req.Params) != 1 {
		return &Error{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &Error{Code: codeInvalidParams, Message: "malformed params: " + err.Error()}
	}
	return nil
}

func decodeID(encoded string) ([32]byte, *Error) {
	var id [32]byte
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return id, &Error{Code: codeInvalidParams, Message: "id must be 32 hex-encoded bytes"}
	}
	copy(id[:], raw)
	return id, nil
}

func decodeAmount(encoded string) (*big.Int, *Error) {
	amount, ok := new(big.Int).SetString(encoded, 10)
	if !ok {
		return nil, &Error{Code: codeInvalidParams, Message: "amount must be a base-10 integer string"}
	}
	return amount, nil
}

func (s *Server) handleCreate(_ context.Context, req *Request) (any, *Error) {
	var params createParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := decodeAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	engineParams := swap.CreateParams{
		Direction:    params.Direction,
		Amount:       amount,
		PartialFills: params.PartialFills,
	}
	if params.TimelockHours != nil {
		engineParams.Timelock = time.Duration(*params.TimelockHours * float64(time.Hour))
	}
	order, secret, err := s.engine.CreateSwap(engineParams)
	if err != nil {
		return nil, engineError(err)
	}
	return createResult{Order: newOrderView(order), Secret: hex.EncodeToString(secret[:])}, nil
}

func (s *Server) handleConfirmFunding(ctx context.Context, req *Request) (any, *Error) {
	var params orderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := decodeID(params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	order, err := s.engine.ConfirmFunding(ctx, id)
	if err != nil {
		return nil, engineError(err)
	}
	return settleResult{Order: newOrderView(order)}, nil
}

func (s *Server) handleFill(ctx context.Context, req *Request) (any, *Error) {
	var params fillParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := decodeID(params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := decodeAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	order, fill, secret, err := s.engine.Fill(ctx, id, amount)
	if err != nil {
		return nil, engineError(err)
	}
	return fillResult{
		Order:  newOrderView(order),
		Fill:   newFillView(fill),
		Secret: hex.EncodeToString(secret[:]),
	}, nil
}

func (s *Server) handleClaim(ctx context.Context, req *Request) (any, *Error) {
	var params claimParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := decodeID(params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	secret, err := hex.DecodeString(params.Secret)
	if err != nil || len(secret) == 0 {
		return nil, &Error{Code: codeInvalidParams, Message: "secret must be non-empty hex"}
	}
	seq := swap.OrderSeq
	if params.FillSeq != nil {
		seq = *params.FillSeq
	}
	order, receipt, engineErr := s.engine.Claim(ctx, id, seq, secret)
	if engineErr != nil {
		return nil, engineError(engineErr)
	}
	return settleResult{Order: newOrderView(order), Receipt: newReceiptView(receipt)}, nil
}

func (s *Server) handleRefund(ctx context.Context, req *Request) (any, *Error) {
	var params orderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := decodeID(params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	order, receipt, err := s.engine.Refund(ctx, id)
	if err != nil {
		return nil, engineError(err)
	}
	return settleResult{Order: newOrderView(order), Receipt: newReceiptView(receipt)}, nil
}

func (s *Server) handleGet(_ context.Context, req *Request) (any, *Error) {
	var params orderParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := decodeID(params.ID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	status, err := s.engine.Status(id)
	if err != nil {
		return nil, engineError(err)
	}
	return statusResult{
		Order:     newOrderView(status.Order),
		Phase:     status.Phase.String(),
		ExpiresIn: status.ExpiresIn,
		Remaining: status.Remaining.String(),
		Reserved:  status.Reserved.String(),
	}, nil
}
