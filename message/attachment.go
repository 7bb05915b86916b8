package message

import (
	"encoding/binary"
	"fmt"

	oerr "github.com/jazi007/oxidros/errors"
)

// AttachmentSize is the fixed encoded size of an Attachment: two
// little-endian int64 values, a one-byte gid length, and a 16-byte gid.
const AttachmentSize = 8 + 8 + 1 + 16

// Attachment is the per-sample metadata block carried next to every
// payload and echoed back on service replies for correlation.
type Attachment struct {
	SequenceNumber    int64
	SourceTimestampNS int64
	SourceGID         GID
}

// Encode serializes the attachment into its fixed 33-byte wire form.
func (a Attachment) Encode() []byte {
	buf := make([]byte, AttachmentSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(a.SequenceNumber))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(a.SourceTimestampNS))
	buf[16] = byte(len(a.SourceGID))
	copy(buf[17:], a.SourceGID[:])
	return buf
}

// DecodeAttachment parses the fixed wire form produced by Encode. Input
// of the wrong length or with an unexpected gid length is rejected.
func DecodeAttachment(data []byte) (Attachment, error) {
	if len(data) != AttachmentSize {
		return Attachment{}, fmt.Errorf("message.DecodeAttachment: want %d bytes, got %d: %w",
			AttachmentSize, len(data), oerr.ErrInvalidAttachment)
	}
	if data[16] != 16 {
		return Attachment{}, fmt.Errorf("message.DecodeAttachment: gid length %d: %w",
			data[16], oerr.ErrInvalidAttachment)
	}
	var a Attachment
	a.SequenceNumber = int64(binary.LittleEndian.Uint64(data[0:8]))
	a.SourceTimestampNS = int64(binary.LittleEndian.Uint64(data[8:16]))
	copy(a.SourceGID[:], data[17:])
	return a, nil
}

// Info converts the attachment to the MessageInfo handed to receivers.
func (a Attachment) Info() MessageInfo {
	return MessageInfo{
		SequenceNumber:    a.SequenceNumber,
		SourceTimestampNS: a.SourceTimestampNS,
		PublisherGID:      a.SourceGID,
	}
}
