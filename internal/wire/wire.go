package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindRecord byte = 1

	// HeaderLen is the fixed size of a record header. Backends that can read a
	// byte range serve Contains with exactly this many bytes.
	HeaderLen = 4 + 1 + 1 + 8 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("cacheloader: corrupt record")
	magic4     = [...]byte{'C', 'L', 'D', 'R'}
)

// Header is the metadata portion of a stored record.
// Created and Expires are unix nanoseconds; Expires == 0 means no expiry.
type Header struct {
	Version    uint64
	Created    int64
	Expires    int64
	PayloadLen uint32
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Record: magic(4) | ver(1) | kind(1) | version(u64 be) | created(i64 be) | expires(i64 be) | vlen(u32 be) | payload(vlen)
func EncodeRecord(h Header, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRecord)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], h.Version)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(h.Created))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(h.Expires))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeHeader parses the header from a record prefix. b may be truncated to
// HeaderLen; the payload is not inspected.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen || !hasMagic(b) || b[4] != version || b[5] != kindRecord {
		return Header{}, ErrCorrupt
	}
	off := 6
	var h Header
	h.Version = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	h.Created = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	h.Expires = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	h.PayloadLen = binary.BigEndian.Uint32(b[off : off+4])
	return h, nil
}

// DecodeRecord parses a full record. Trailing bytes after the payload are
// rejected.
func DecodeRecord(b []byte) (Header, []byte, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	vlen := int(h.PayloadLen)
	if vlen != len(b)-HeaderLen { // overflow-safe exact length check
		return Header{}, nil, ErrCorrupt
	}
	return h, b[HeaderLen:], nil
}
