// Package protocol implements the binary framed wire protocol between the
// CLI client and the daemon over a Unix socket (§A2 of the core contract).
package protocol

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	magic      uint32 = 0x57504c01 // "WPL\x01"
	headerSize        = 12
)

// Flag bits for the header Flags byte.
const (
	FlagChecksum uint8 = 0x01
)

// Version is the negotiated protocol version implemented by this package.
const Version uint8 = 0

// MessageType enumerates the three message categories exchanged between
// client and daemon.
type MessageType uint8

const (
	// MsgRequestBatch carries a client-submitted batch of rendering
	// requests, CLI to daemon.
	MsgRequestBatch MessageType = iota
	// MsgClear carries a request to drop the current wallpaper from a set
	// of outputs without replacing it, CLI to daemon.
	MsgClear
	// MsgReply carries the daemon's synchronous Ok/Err answer, daemon to
	// CLI.
	MsgReply
)

// Header describes the fixed portion of every frame exchanged over the
// wire: magic, version, message type, flags, payload length, and an
// optional CRC32 (IEEE) checksum over the version, type and flags bytes
// and the payload.
type Header struct {
	Version    uint8
	Type       MessageType
	Flags      uint8
	PayloadLen uint32
	Checksum   uint32
}

var (
	ErrInvalidMagic     = errors.New("protocol: invalid magic")
	ErrUnsupportedVer   = errors.New("protocol: unsupported version")
	ErrShortPayload     = errors.New("protocol: payload shorter than declared length")
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
	errPayloadShort     = errors.New("protocol: payload too short")
)

// WriteMessage serialises the header and payload to w. FlagChecksum in
// hdr.Flags causes a checksum to be computed over header bytes 4-7
// (version, type, flags and one reserved byte) and the payload; the magic
// and payload length are not covered. Without the flag, hdr.Checksum is
// written as given (0 unless the caller set it).
func WriteMessage(w io.Writer, hdr Header, payload []byte) error {
	hdr.PayloadLen = uint32(len(payload))

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	buf[4] = hdr.Version
	buf[5] = byte(hdr.Type)
	buf[6] = hdr.Flags
	binary.LittleEndian.PutUint32(buf[8:12], hdr.PayloadLen)

	checksum := hdr.Checksum
	if hdr.Flags&FlagChecksum != 0 {
		crc := crc32.NewIEEE()
		_, _ = crc.Write(buf[4:8])
		if len(payload) > 0 {
			_, _ = crc.Write(payload)
		}
		checksum = crc.Sum32()
	}
	// The checksum itself is carried after the 12-byte fixed header; see
	// ReadMessage.
	var checksumBuf [4]byte
	binary.LittleEndian.PutUint32(checksumBuf[:], checksum)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(checksumBuf[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads a header and payload from r.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var hdr Header
	buf := make([]byte, headerSize+4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return hdr, nil, err
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return hdr, nil, ErrInvalidMagic
	}

	hdr.Version = buf[4]
	hdr.Type = MessageType(buf[5])
	hdr.Flags = buf[6]
	hdr.PayloadLen = binary.LittleEndian.Uint32(buf[8:12])
	hdr.Checksum = binary.LittleEndian.Uint32(buf[12:16])

	if hdr.Version != Version {
		return hdr, nil, ErrUnsupportedVer
	}

	payload := make([]byte, hdr.PayloadLen)
	if hdr.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return hdr, nil, ErrShortPayload
			}
			return hdr, nil, err
		}
	}

	if hdr.Flags&FlagChecksum != 0 {
		crc := crc32.NewIEEE()
		_, _ = crc.Write(buf[4:8])
		if len(payload) > 0 {
			_, _ = crc.Write(payload)
		}
		if crc.Sum32() != hdr.Checksum {
			return hdr, nil, ErrChecksumMismatch
		}
	}

	return hdr, payload, nil
}
