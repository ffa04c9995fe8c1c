// Command wallpaperctl is the CLI front end: it builds a request batch (or
// a clear request) from flags and sends it to wallpaperd over its Unix
// socket, printing the daemon's reply.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/fadewall/wallpaperd/config"
	"github.com/fadewall/wallpaperd/protocol"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "wallpaperctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: wallpaperctl <img|clear> ...")
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	switch args[0] {
	case "img":
		return runImg(args[1:], cfg)
	case "clear":
		return runClear(args[1:], cfg)
	default:
		return fmt.Errorf("unknown subcommand %q (want img or clear)", args[0])
	}
}

func runImg(args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("img", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	socket := fs.String("socket", cfg.SocketPathOr("/tmp/wallpaperd.sock"), "Unix socket path")
	filter := fs.String("filter", cfg.DefaultFilter, "Resampling filter: Nearest, Triangle, CatmullRom, Gaussian, Lanczos3")
	step := fs.Uint("step", uint(cfg.DefaultStep), "Transition step size, 1-255")
	transitionMs := fs.Int("transition-ms", cfg.DefaultPeriodMs, "Transition frame period, milliseconds")
	width := fs.Uint("width", 1920, "Output width in pixels")
	height := fs.Uint("height", 1080, "Output height in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: wallpaperctl img [flags] <path> <output...>")
	}
	path, outputs := rest[0], rest[1:]

	if *step == 0 || *step > 255 {
		return fmt.Errorf("--step must be in [1,255]")
	}

	batch := protocol.RequestBatch{Requests: []protocol.WireRequest{{
		Outputs:  outputs,
		Width:    uint32(*width),
		Height:   uint32(*height),
		Path:     path,
		Filter:   *filter,
		Step:     uint8(*step),
		PeriodMs: uint32(*transitionMs),
	}}}

	payload, err := protocol.EncodeRequestBatch(batch)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgRequestBatch, Flags: protocol.FlagChecksum}
	return sendAndPrintReply(*socket, hdr, payload)
}

func runClear(args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	socket := fs.String("socket", cfg.SocketPathOr("/tmp/wallpaperd.sock"), "Unix socket path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	outputs := fs.Args()
	if len(outputs) == 0 {
		return fmt.Errorf("usage: wallpaperctl clear [flags] <output...>")
	}

	payload, err := protocol.EncodeClearRequest(protocol.ClearRequest{Outputs: outputs})
	if err != nil {
		return fmt.Errorf("encoding clear request: %w", err)
	}
	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgClear, Flags: protocol.FlagChecksum}
	return sendAndPrintReply(*socket, hdr, payload)
}

func sendAndPrintReply(socket string, hdr protocol.Header, payload []byte) error {
	conn, err := net.DialTimeout("unix", socket, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", socket, err)
	}
	defer conn.Close()

	if err := protocol.WriteMessage(conn, hdr, payload); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	_, replyPayload, err := protocol.ReadMessage(conn)
	if err != nil {
		return fmt.Errorf("reading reply: %w", err)
	}
	reply, err := protocol.DecodeReply(replyPayload)
	if err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	if !reply.Ok() {
		return fmt.Errorf("daemon: %s", reply.Message)
	}
	fmt.Println("ok")
	return nil
}
