package main

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/fadewall/wallpaperd/protocol"
)

func serveOnce(t *testing.T, socket string, handle func(protocol.Header, []byte) (protocol.Header, []byte)) {
	t.Helper()
	l, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := l.Accept()
		l.Close()
		if err != nil {
			return
		}
		defer conn.Close()
		hdr, payload, err := protocol.ReadMessage(conn)
		if err != nil {
			return
		}
		replyHdr, replyPayload := handle(hdr, payload)
		_ = protocol.WriteMessage(conn, replyHdr, replyPayload)
	}()
}

func okReply(protocol.Header, []byte) (protocol.Header, []byte) {
	payload, _ := protocol.EncodeReply(protocol.Reply{})
	return protocol.Header{Version: protocol.Version, Type: protocol.MsgReply, Flags: protocol.FlagChecksum}, payload
}

func TestRunImgSendsRequestBatch(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "wallpaperd.sock")

	var gotType protocol.MessageType
	var gotBatch protocol.RequestBatch
	serveOnce(t, socket, func(hdr protocol.Header, payload []byte) (protocol.Header, []byte) {
		gotType = hdr.Type
		gotBatch, _ = protocol.DecodeRequestBatch(payload)
		return okReply(hdr, payload)
	})

	err := run([]string{"img", "-socket", socket, "-filter", "Lanczos3", "-step", "5", "img.png", "HDMI-1", "eDP-1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotType != protocol.MsgRequestBatch {
		t.Fatalf("expected MsgRequestBatch, got %v", gotType)
	}
	if len(gotBatch.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(gotBatch.Requests))
	}
	req := gotBatch.Requests[0]
	if req.Path != "img.png" || req.Filter != "Lanczos3" || req.Step != 5 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Outputs) != 2 || req.Outputs[0] != "HDMI-1" || req.Outputs[1] != "eDP-1" {
		t.Fatalf("unexpected outputs: %v", req.Outputs)
	}
}

func TestRunImgRejectsBadStep(t *testing.T) {
	if err := run([]string{"img", "-step", "0", "img.png", "HDMI-1"}); err == nil {
		t.Fatalf("expected error for step 0")
	}
	if err := run([]string{"img", "-step", "256", "img.png", "HDMI-1"}); err == nil {
		t.Fatalf("expected error for step 256")
	}
}

func TestRunClearSendsOutputs(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "wallpaperd.sock")

	var gotType protocol.MessageType
	var gotReq protocol.ClearRequest
	serveOnce(t, socket, func(hdr protocol.Header, payload []byte) (protocol.Header, []byte) {
		gotType = hdr.Type
		gotReq, _ = protocol.DecodeClearRequest(payload)
		return okReply(hdr, payload)
	})

	if err := run([]string{"clear", "-socket", socket, "HDMI-1"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gotType != protocol.MsgClear {
		t.Fatalf("expected MsgClear, got %v", gotType)
	}
	if len(gotReq.Outputs) != 1 || gotReq.Outputs[0] != "HDMI-1" {
		t.Fatalf("unexpected outputs: %v", gotReq.Outputs)
	}
}

func TestRunPropagatesDaemonError(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "wallpaperd.sock")
	serveOnce(t, socket, func(hdr protocol.Header, _ []byte) (protocol.Header, []byte) {
		payload, _ := protocol.EncodeReply(protocol.Reply{Message: "decoding img.png: no such file"})
		return protocol.Header{Version: protocol.Version, Type: protocol.MsgReply, Flags: protocol.FlagChecksum}, payload
	})

	err := run([]string{"img", "-socket", socket, "img.png", "HDMI-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunUnknownSubcommand(t *testing.T) {
	if err := run([]string{"frobnicate"}); err == nil {
		t.Fatalf("expected error for unknown subcommand")
	}
}

func TestRunRequiresSubcommand(t *testing.T) {
	if err := run(nil); err == nil {
		t.Fatalf("expected error for missing subcommand")
	}
}
