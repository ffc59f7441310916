package types

// Client -> Server commands. Ack, when present, is echoed back in the
// response frame.
const (
	CmdTakeSeat = "takeSeat"
	CmdBuyItem  = "buyItem"
	CmdUseItem  = "useItem"
)

type ClientMessage struct {
	Type     string `json:"type"`
	Ack      *int64 `json:"ack,omitempty"`
	SeatID   string `json:"seatId,omitempty"`
	ItemID   string `json:"itemId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}
