// Package wire is the byte-level framing every stream transport uses
// to put a core.Message on the wire: a 4-byte big-endian header
// length, the header, a 4-byte big-endian body length, and the body.
// No library in the retrieved example corpus covers this concern (it
// is the minimal framing a protocol needs over its own transport, not
// a general serialization format), so it is built directly on
// encoding/binary and io from the standard library.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/npio/scaleproto/core"
)

// Encode returns msg as a single self-delimited buffer, used by
// transports (e.g. one websocket binary frame per Message) that frame
// at a layer below this package.
func Encode(msg core.Message) []byte {
	buf := make([]byte, 4+len(msg.Header)+4+len(msg.Body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(msg.Header)))
	copy(buf[4:], msg.Header)
	off := 4 + len(msg.Header)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(msg.Body)))
	copy(buf[off+4:], msg.Body)
	return buf
}

// Decode is Encode's inverse.
func Decode(buf []byte) (core.Message, error) {
	if len(buf) < 4 {
		return core.Message{}, fmt.Errorf("wire: buffer too short for header length")
	}
	headerLen := int(binary.BigEndian.Uint32(buf[0:4]))
	if len(buf) < 4+headerLen+4 {
		return core.Message{}, fmt.Errorf("wire: buffer too short for header")
	}
	header := buf[4 : 4+headerLen]
	off := 4 + headerLen
	bodyLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
	if len(buf) < off+4+bodyLen {
		return core.Message{}, fmt.Errorf("wire: buffer too short for body")
	}
	body := buf[off+4 : off+4+bodyLen]
	return core.Message{Header: append([]byte(nil), header...), Body: append([]byte(nil), body...)}, nil
}

// WriteMessage writes msg to w in the framing above, for transports
// backed by a persistent byte stream (TCP, an smux stream) rather
// than a message-oriented one.
func WriteMessage(w io.Writer, msg core.Message) error {
	_, err := w.Write(Encode(msg))
	return err
}

// ReadMessage reads one framed message from r. maxSize, if nonzero,
// rejects a body claiming to be larger than the socket's configured
// RecvMaxSize before attempting to read it.
func ReadMessage(r *bufio.Reader, maxSize uint64) (core.Message, error) {
	var lenBuf [4]byte

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return core.Message{}, err
	}
	headerLen := binary.BigEndian.Uint32(lenBuf[:])
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return core.Message{}, err
	}

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return core.Message{}, err
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])
	if maxSize > 0 && uint64(bodyLen) > maxSize {
		return core.Message{}, fmt.Errorf("wire: body of %d bytes exceeds max size %d", bodyLen, maxSize)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return core.Message{}, err
	}

	return core.Message{Header: header, Body: body}, nil
}
