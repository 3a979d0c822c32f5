package wire

import (
	"bytes"
	"fmt"
)

// Registration is the parsed form of a registration frame read off the
// rendezvous pipe. BoxName is empty for list requests.
type Registration struct {
	Opcode   Opcode
	PipePath string
	BoxName  string
}

// DecodeRegistration parses a fixed-layout registration frame. buf must be
// exactly RegistrationSize (pub/sub/create/remove) or ListRequestSize
// (list) bytes, opcode byte included.
func DecodeRegistration(buf []byte) (Registration, error) {
	if len(buf) == 0 {
		return Registration{}, fmt.Errorf("wire: empty registration frame")
	}
	op := Opcode(buf[0])
	switch op {
	case OpPubReg, OpSubReg, OpBoxCreate, OpBoxRemove:
		if len(buf) != RegistrationSize {
			return Registration{}, fmt.Errorf("wire: registration frame has %d bytes, want %d", len(buf), RegistrationSize)
		}
		return Registration{
			Opcode:   op,
			PipePath: decodeCString(buf[OpcodeSize : OpcodeSize+PipeNameSize]),
			BoxName:  decodeCString(buf[OpcodeSize+PipeNameSize : OpcodeSize+PipeNameSize+BoxNameSize]),
		}, nil
	case OpBoxList:
		if len(buf) != ListRequestSize {
			return Registration{}, fmt.Errorf("wire: list frame has %d bytes, want %d", len(buf), ListRequestSize)
		}
		return Registration{
			Opcode:   op,
			PipePath: decodeCString(buf[OpcodeSize : OpcodeSize+PipeNameSize]),
		}, nil
	default:
		return Registration{}, fmt.Errorf("wire: invalid opcode %v", op)
	}
}

// EncodeRegistration produces the wire bytes for a registration frame, used
// by CLI clients to talk to the broker.
func EncodeRegistration(op Opcode, pipePath, boxName string) ([]byte, error) {
	switch op {
	case OpPubReg, OpSubReg, OpBoxCreate, OpBoxRemove:
		buf := make([]byte, RegistrationSize)
		buf[0] = byte(op)
		if err := encodeCString(buf[OpcodeSize:OpcodeSize+PipeNameSize], pipePath); err != nil {
			return nil, fmt.Errorf("wire: pipe path: %w", err)
		}
		if err := encodeCString(buf[OpcodeSize+PipeNameSize:OpcodeSize+PipeNameSize+BoxNameSize], boxName); err != nil {
			return nil, fmt.Errorf("wire: box name: %w", err)
		}
		return buf, nil
	case OpBoxList:
		buf := make([]byte, ListRequestSize)
		buf[0] = byte(op)
		if err := encodeCString(buf[OpcodeSize:OpcodeSize+PipeNameSize], pipePath); err != nil {
			return nil, fmt.Errorf("wire: pipe path: %w", err)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("wire: invalid opcode %v", op)
	}
}

// EncodeMessage builds a PUB_MSG or SUB_MSG frame: opcode followed by the
// zero-terminated payload, zero-padded to MsgMaxSize.
func EncodeMessage(op Opcode, payload string) ([]byte, error) {
	buf := make([]byte, OpcodeSize+MsgMaxSize)
	buf[0] = byte(op)
	if err := encodeCString(buf[OpcodeSize:], payload); err != nil {
		return nil, fmt.Errorf("wire: message payload: %w", err)
	}
	return buf, nil
}

// DecodeMessagePayload extracts the zero-terminated payload from a
// PUB_MSG/SUB_MSG frame body (everything after the opcode byte).
func DecodeMessagePayload(body []byte) string {
	return decodeCString(body)
}

// EncodeBoxResponse builds a RES_BOX_CREAT/RES_BOX_REMOVE frame.
func EncodeBoxResponse(op Opcode, returnCode int32, errMsg string) ([]byte, error) {
	buf := make([]byte, BoxResponseSize)
	buf[0] = byte(op)
	putInt32(buf[OpcodeSize:OpcodeSize+ReturnCodeSize], returnCode)
	if returnCode != 0 {
		if err := encodeCString(buf[OpcodeSize+ReturnCodeSize:], errMsg); err != nil {
			return nil, fmt.Errorf("wire: error message: %w", err)
		}
	}
	return buf, nil
}

// DecodeBoxResponse parses a RES_BOX_CREAT/RES_BOX_REMOVE frame body
// (everything after the opcode byte).
func DecodeBoxResponse(body []byte) (returnCode int32, errMsg string, err error) {
	if len(body) != ReturnCodeSize+ErrorMsgSize {
		return 0, "", fmt.Errorf("wire: box response body has %d bytes, want %d", len(body), ReturnCodeSize+ErrorMsgSize)
	}
	returnCode = getInt32(body[:ReturnCodeSize])
	errMsg = decodeCString(body[ReturnCodeSize:])
	return returnCode, errMsg, nil
}

// BoxRecord is the wire-visible twin of a registry box entry, matching
// common.h's box_t.
type BoxRecord struct {
	Name         string
	Size         uint64
	NPublishers  uint64
	NSubscribers uint64
}

// EncodeBoxListFrame builds one RES_BOX_LIST record frame.
func EncodeBoxListFrame(last bool, rec BoxRecord) ([]byte, error) {
	buf := make([]byte, BoxListFrameSize)
	buf[0] = byte(OpResBoxList)
	if last {
		buf[OpcodeSize] = 1
	}
	rest := buf[OpcodeSize+LastSize:]
	if err := encodeCString(rest[:BoxNameSize], rec.Name); err != nil {
		return nil, fmt.Errorf("wire: box name: %w", err)
	}
	putUint64(rest[BoxNameSize:BoxNameSize+8], rec.Size)
	putUint64(rest[BoxNameSize+8:BoxNameSize+16], rec.NPublishers)
	putUint64(rest[BoxNameSize+16:BoxNameSize+24], rec.NSubscribers)
	return buf, nil
}

// DecodeBoxListFrame parses one RES_BOX_LIST frame body (everything after
// the opcode byte): a 1-byte last flag followed by a 56-byte box record.
func DecodeBoxListFrame(body []byte) (last bool, rec BoxRecord, err error) {
	if len(body) != LastSize+BoxRecordSize {
		return false, BoxRecord{}, fmt.Errorf("wire: list frame body has %d bytes, want %d", len(body), LastSize+BoxRecordSize)
	}
	last = body[0] != 0
	rest := body[LastSize:]
	rec.Name = decodeCString(rest[:BoxNameSize])
	rec.Size = getUint64(rest[BoxNameSize : BoxNameSize+8])
	rec.NPublishers = getUint64(rest[BoxNameSize+8 : BoxNameSize+16])
	rec.NSubscribers = getUint64(rest[BoxNameSize+16 : BoxNameSize+24])
	return last, rec, nil
}

func encodeCString(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return fmt.Errorf("string %q too long for %d-byte field", s, len(dst))
	}
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, s)
	return nil
}

func decodeCString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func putInt32(dst []byte, v int32) {
	putUint32(dst, uint32(v))
}

func getInt32(src []byte) int32 {
	return int32(getUint32(src))
}

func putUint32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func getUint32(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

func putUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func getUint64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(src[i]) << (8 * i)
	}
	return v
}
