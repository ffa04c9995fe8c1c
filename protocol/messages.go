package protocol

import (
	"bytes"
	"encoding/binary"
)

// WireRequest is the socket-transport encoding of a single rendering
// request: output names, target dimensions, the old on-screen buffer, the
// new image's path, a filter name, a transition step and period.
type WireRequest struct {
	Outputs  []string
	Width    uint32
	Height   uint32
	Old      []byte
	Path     string
	Filter   string
	Step     uint8
	PeriodMs uint32
}

// RequestBatch is the payload of a MsgRequestBatch message.
type RequestBatch struct {
	Requests []WireRequest
}

// Reply is the payload of a MsgReply message: Ok when Message is empty,
// Err(Message) otherwise.
type Reply struct {
	Message string
}

// Ok reports whether the reply represents success.
func (r Reply) Ok() bool { return r.Message == "" }

// EncodeRequestBatch serialises a batch of requests into a compact binary
// representation, mirroring the teacher's manual field-by-field binary.Write
// encoding style.
func EncodeRequestBatch(batch RequestBatch) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 128))

	if len(batch.Requests) > 0xFFFF {
		return nil, errPayloadShort
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(batch.Requests))); err != nil {
		return nil, err
	}

	for _, req := range batch.Requests {
		if len(req.Outputs) > 0xFF {
			return nil, errPayloadShort
		}
		buf.WriteByte(byte(len(req.Outputs)))
		for _, out := range req.Outputs {
			if err := writeString(buf, out); err != nil {
				return nil, err
			}
		}

		if err := binary.Write(buf, binary.LittleEndian, req.Width); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, req.Height); err != nil {
			return nil, err
		}

		if err := binary.Write(buf, binary.LittleEndian, uint32(len(req.Old))); err != nil {
			return nil, err
		}
		if len(req.Old) > 0 {
			buf.Write(req.Old)
		}

		if err := writeString(buf, req.Path); err != nil {
			return nil, err
		}
		if err := writeString(buf, req.Filter); err != nil {
			return nil, err
		}

		buf.WriteByte(req.Step)
		if err := binary.Write(buf, binary.LittleEndian, req.PeriodMs); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DecodeRequestBatch reverses EncodeRequestBatch.
func DecodeRequestBatch(b []byte) (RequestBatch, error) {
	var batch RequestBatch
	if len(b) < 2 {
		return batch, errPayloadShort
	}
	count := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]

	batch.Requests = make([]WireRequest, count)
	for i := 0; i < int(count); i++ {
		if len(b) < 1 {
			return batch, errPayloadShort
		}
		outCount := int(b[0])
		b = b[1:]

		outputs := make([]string, outCount)
		for o := 0; o < outCount; o++ {
			s, rest, err := readString(b)
			if err != nil {
				return batch, err
			}
			outputs[o] = s
			b = rest
		}

		if len(b) < 12 {
			return batch, errPayloadShort
		}
		width := binary.LittleEndian.Uint32(b[0:4])
		height := binary.LittleEndian.Uint32(b[4:8])
		oldLen := binary.LittleEndian.Uint32(b[8:12])
		b = b[12:]

		if len(b) < int(oldLen) {
			return batch, errPayloadShort
		}
		old := append([]byte(nil), b[:oldLen]...)
		b = b[oldLen:]

		path, rest, err := readString(b)
		if err != nil {
			return batch, err
		}
		b = rest

		filter, rest, err := readString(b)
		if err != nil {
			return batch, err
		}
		b = rest

		if len(b) < 5 {
			return batch, errPayloadShort
		}
		step := b[0]
		periodMs := binary.LittleEndian.Uint32(b[1:5])
		b = b[5:]

		batch.Requests[i] = WireRequest{
			Outputs: outputs, Width: width, Height: height, Old: old,
			Path: path, Filter: filter, Step: step, PeriodMs: periodMs,
		}
	}

	return batch, nil
}

// ClearRequest is the payload of a MsgClear message: the output names to
// drop the current wallpaper from.
type ClearRequest struct {
	Outputs []string
}

// EncodeClearRequest serialises a ClearRequest.
func EncodeClearRequest(r ClearRequest) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 32))
	if len(r.Outputs) > 0xFF {
		return nil, errPayloadShort
	}
	buf.WriteByte(byte(len(r.Outputs)))
	for _, out := range r.Outputs {
		if err := writeString(buf, out); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeClearRequest reverses EncodeClearRequest.
func DecodeClearRequest(b []byte) (ClearRequest, error) {
	if len(b) < 1 {
		return ClearRequest{}, errPayloadShort
	}
	n := int(b[0])
	b = b[1:]
	outputs := make([]string, n)
	for i := 0; i < n; i++ {
		s, rest, err := readString(b)
		if err != nil {
			return ClearRequest{}, err
		}
		outputs[i] = s
		b = rest
	}
	return ClearRequest{Outputs: outputs}, nil
}

// EncodeReply serialises a Reply payload.
func EncodeReply(r Reply) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(r.Message)+2))
	if err := writeString(buf, r.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeReply reverses EncodeReply.
func DecodeReply(b []byte) (Reply, error) {
	msg, _, err := readString(b)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Message: msg}, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	data := []byte(s)
	if len(data) > 0xFFFF {
		return errPayloadShort
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(data))); err != nil {
		return err
	}
	if len(data) > 0 {
		buf.Write(data)
	}
	return nil
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errPayloadShort
	}
	n := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if len(b) < int(n) {
		return "", nil, errPayloadShort
	}
	return string(b[:n]), b[n:], nil
}
