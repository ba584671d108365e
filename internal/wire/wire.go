// Package wire implements the binary broadcast wire format (spec.md §6):
// a compact, little-endian, length-prefix-free TradeMsg the matcher hands
// to the broadcaster sink for every trade. All integer fields are
// little-endian; there is no floating point anywhere in the wire format.
package wire

import (
	"encoding/binary"
	"fmt"
)

// TradeMsgType is the msg_type tag for a trade broadcast record.
const TradeMsgType uint8 = 1

// TradeMsgLen is the fixed encoded size of a TradeMsg: 1 + 4 + 4 + 4 + 4 + 8.
const TradeMsgLen = 1 + 4 + 4 + 4 + 4 + 8

// TradeMsg is the decoded form of a trade broadcast record.
type TradeMsg struct {
	Price        uint32
	Quantity     uint32
	MakerOrderID uint32
	TakerOrderID uint32
	TimestampMS  int64
}

// EncodeTradeMsg serializes msg into the wire format a subscriber expects.
func EncodeTradeMsg(msg TradeMsg) []byte {
	buf := make([]byte, TradeMsgLen)
	buf[0] = TradeMsgType
	binary.LittleEndian.PutUint32(buf[1:5], msg.Price)
	binary.LittleEndian.PutUint32(buf[5:9], msg.Quantity)
	binary.LittleEndian.PutUint32(buf[9:13], msg.MakerOrderID)
	binary.LittleEndian.PutUint32(buf[13:17], msg.TakerOrderID)
	binary.LittleEndian.PutUint64(buf[17:25], uint64(msg.TimestampMS))
	return buf
}

// DecodeTradeMsg parses a wire-format TradeMsg, as a subscriber would.
func DecodeTradeMsg(buf []byte) (TradeMsg, error) {
	if len(buf) != TradeMsgLen {
		return TradeMsg{}, fmt.Errorf("wire: trade message must be %d bytes, got %d", TradeMsgLen, len(buf))
	}
	if buf[0] != TradeMsgType {
		return TradeMsg{}, fmt.Errorf("wire: unexpected msg_type %d", buf[0])
	}
	return TradeMsg{
		Price:        binary.LittleEndian.Uint32(buf[1:5]),
		Quantity:     binary.LittleEndian.Uint32(buf[5:9]),
		MakerOrderID: binary.LittleEndian.Uint32(buf[9:13]),
		TakerOrderID: binary.LittleEndian.Uint32(buf[13:17]),
		TimestampMS:  int64(binary.LittleEndian.Uint64(buf[17:25])),
	}, nil
}
