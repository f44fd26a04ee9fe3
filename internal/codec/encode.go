package codec

import (
	"encoding/json"
	"fmt"

	"github.com/ThomasWongMingHei/pedlar/internal/schema"
)

// EncodeCreateOrder builds a create_order request frame. The correlation id
// is carried on the envelope; retries of the same logical request must reuse
// the encoded frame verbatim so the venue can deduplicate.
func EncodeCreateOrder(corrID, exchange, ticker string, side schema.OrderSide, volume float64) ([]byte, error) {
	if side != schema.SideBuy && side != schema.SideSell {
		return nil, fmt.Errorf("invalid side %v", side)
	}
	return encode(typeCreateOrder, corrID, createOrderPayload{
		Exchange: exchange,
		Ticker:   ticker,
		Side:     side.String(),
		Volume:   volume,
	})
}

// EncodeCloseOrder builds a close_order request frame for a venue order id.
func EncodeCloseOrder(corrID string, orderID uint64) ([]byte, error) {
	return encode(typeCloseOrder, corrID, closeOrderPayload{OrderID: orderID})
}

// EncodeSubscribe builds a subscription request for the given symbols.
func EncodeSubscribe(symbols []schema.Symbol) ([]byte, error) {
	pairs := make([]subscribePairPayload, 0, len(symbols))
	for _, s := range symbols {
		pairs = append(pairs, subscribePairPayload{Exchange: s.Exchange, Ticker: s.Ticker})
	}
	return encode(typeSubscribe, "", subscribePayload{Pairs: pairs})
}

// EncodeSnapshotRequest builds a request for the venue's authoritative state.
func EncodeSnapshotRequest() ([]byte, error) {
	return json.Marshal(frame{Type: typeSnapshotRequest})
}

func encode(frameType, corrID string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", frameType, err)
	}
	return json.Marshal(frame{
		Type:          frameType,
		CorrelationID: corrID,
		Data:          data,
	})
}
