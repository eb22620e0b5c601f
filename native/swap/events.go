package swap

import (
	"encoding/hex"
	"strconv"

	"swapd/core/events"
)

const (
	EventTypeOrderCreated       = "swap.order.created"
	EventTypeOrderFunded        = "swap.order.funded"
	EventTypeOrderPartialFilled = "swap.order.partial_filled"
	EventTypeOrderFilled        = "swap.order.filled"
	EventTypeFillClaimed        = "swap.fill.claimed"
	EventTypeOrderClaimed       = "swap.order.claimed"
	EventTypeOrderRefunded      = "swap.order.refunded"
	EventTypeOrderExpired       = "swap.order.expired"
	EventTypeOrderHalted        = "swap.order.halted"
)

func orderAttributes(order *SwapOrder) map[string]string {
	attrs := map[string]string{
		"id":        hex.EncodeToString(order.ID[:]),
		"direction": string(order.Direction),
		"status":    order.Status.String(),
	}
	if order.Amount != nil {
		attrs["amount"] = order.Amount.String()
	}
	if order.Filled != nil {
		attrs["filled"] = order.Filled.String()
	}
	return attrs
}

func newOrderCreatedEvent(order *SwapOrder) *events.Event {
	attrs := orderAttributes(order)
	attrs["expiry"] = strconv.FormatInt(order.Expiry, 10)
	attrs["partialFills"] = strconv.FormatBool(order.PartialFills)
	return &events.Event{Type: EventTypeOrderCreated, Attributes: attrs}
}

func newOrderFundedEvent(order *SwapOrder) *events.Event {
	return &events.Event{Type: EventTypeOrderFunded, Attributes: orderAttributes(order)}
}

func newOrderFillEvent(order *SwapOrder, fill *Fill) *events.Event {
	eventType := EventTypeOrderPartialFilled
	if order.Status == OrderFullyFilled {
		eventType = EventTypeOrderFilled
	}
	attrs := orderAttributes(order)
	attrs["fillSeq"] = strconv.FormatUint(uint64(fill.Seq), 10)
	if fill.Amount != nil {
		attrs["fillAmount"] = fill.Amount.String()
	}
	return &events.Event{Type: eventType, Attributes: attrs}
}

func newFillClaimedEvent(order *SwapOrder, fill *Fill, receipt *Receipt) *events.Event {
	attrs := orderAttributes(order)
	attrs["fillSeq"] = strconv.FormatUint(uint64(fill.Seq), 10)
	if receipt != nil {
		attrs["txHash"] = receipt.TxHash
		attrs["chain"] = receipt.Chain
	}
	return &events.Event{Type: EventTypeFillClaimed, Attributes: attrs}
}

func newOrderClaimedEvent(order *SwapOrder, receipt *Receipt) *events.Event {
	attrs := orderAttributes(order)
	if receipt != nil {
		attrs["txHash"] = receipt.TxHash
		attrs["chain"] = receipt.Chain
	}
	return &events.Event{Type: EventTypeOrderClaimed, Attributes: attrs}
}

func newOrderRefundedEvent(order *SwapOrder, receipt *Receipt) *events.Event {
	attrs := orderAttributes(order)
	if receipt != nil {
		attrs["txHash"] = receipt.TxHash
		attrs["chain"] = receipt.Chain
	}
	return &events.Event{Type: EventTypeOrderRefunded, Attributes: attrs}
}

func newOrderExpiredEvent(order *SwapOrder) *events.Event {
	attrs := orderAttributes(order)
	attrs["expiry"] = strconv.FormatInt(order.Expiry, 10)
	return &events.Event{Type: EventTypeOrderExpired, Attributes: attrs}
}

func newOrderHaltedEvent(order *SwapOrder, reason string) *events.Event {
	attrs := orderAttributes(order)
	attrs["reason"] = reason
	return &events.Event{Type: EventTypeOrderHalted, Attributes: attrs}
}
