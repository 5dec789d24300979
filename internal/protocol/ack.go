package protocol

import "fmt"

// AckLength is the logical length of an acknowledgment.
const AckLength = 9

// BuildAckBody builds the acknowledgment body for a decrypted inbound frame.
//
// The ack is first assembled as [0xFE, 9, head(5), crc lo, crc hi] with head
// taken from bytes [2,7) of the inbound frame. Bytes [2,9) of that are
// returned and must be passed to BuildFrame, which re-derives the header.
func BuildAckBody(decrypted []byte) ([]byte, error) {
	if len(decrypted) < AckHeadEnd {
		return nil, fmt.Errorf("%w: ack needs %d bytes, got %d", ErrShortFrame, AckHeadEnd, len(decrypted))
	}

	ack := make([]byte, AckLength)
	ack[OffsetMarker] = Marker
	ack[OffsetLength] = AckLength
	copy(ack[HeaderLen:AckLength-CRCLen], decrypted[AckHeadStart:AckHeadEnd])
	PutCRC16(ack[AckLength-CRCLen:], CRC16(ack[:AckLength-CRCLen]))

	return ack[HeaderLen:], nil
}
