package gateway

import (
	"github.com/mcdev12/dropauction/go/internal/auction"
	"github.com/mcdev12/dropauction/go/internal/models"
)

// ActionShareClick is the only inbound action; anything else is ignored.
const ActionShareClick = "share_click"

// InboundFrame is a message received from a viewer.
type InboundFrame struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
}

// FrameTypePriceUpdate tags price broadcasts.
const FrameTypePriceUpdate = "price_update"

// PriceUpdateFrame is broadcast to every viewer of an item.
type PriceUpdateFrame struct {
	Type        string  `json:"type"`
	ItemID      string  `json:"item_id"`
	NewPrice    float64 `json:"new_price"`
	TotalShares *int64  `json:"total_shares,omitempty"`
}

// ErrorFrame is sent only to the viewer whose share was rejected.
type ErrorFrame struct {
	Error string `json:"error"`
}

// MessageFrame is an informational reply to a single viewer.
type MessageFrame struct {
	Message string `json:"message"`
}

func newPriceUpdateFrame(u models.PriceUpdate) PriceUpdateFrame {
	return PriceUpdateFrame{
		Type:        FrameTypePriceUpdate,
		ItemID:      u.ItemID,
		NewPrice:    u.NewPrice,
		TotalShares: u.TotalShares,
	}
}

// replyFor builds the unicast reply for a rejected share.
func replyFor(err error) any {
	if auction.IsInformational(err) {
		return MessageFrame{Message: auction.ReplyText(err)}
	}
	return ErrorFrame{Error: auction.ReplyText(err)}
}
