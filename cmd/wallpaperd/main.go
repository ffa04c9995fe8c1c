// Command wallpaperd is the daemon: it listens on a Unix socket, decodes
// each connection's request batch, and drives the processor coordinator
// that owns every live transition/animation worker.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/deepteams/webp"

	"github.com/fadewall/wallpaperd/compositor"
	"github.com/fadewall/wallpaperd/config"
	"github.com/fadewall/wallpaperd/processor"
	"github.com/fadewall/wallpaperd/protocol"
	"github.com/fadewall/wallpaperd/resize"
	"github.com/fadewall/wallpaperd/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("wallpaperd: failed to load config, using defaults: %v", err)
		cfg = config.Default()
	}

	socketPath := flag.String("socket", cfg.SocketPathOr("/tmp/wallpaperd.sock"), "Unix socket path")
	flag.Parse()

	frames := sink.New(16)
	coord := processor.New(frames)

	disp, err := compositor.Connect()
	if err != nil {
		log.Fatalf("wallpaperd: connecting to compositor: %v", err)
	}
	go disp.Run(frames)

	if err := os.RemoveAll(*socketPath); err != nil {
		log.Fatalf("wallpaperd: clearing stale socket: %v", err)
	}
	l, err := net.Listen("unix", *socketPath)
	if err != nil {
		log.Fatalf("wallpaperd: listen: %v", err)
	}

	var wg sync.WaitGroup
	quit := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		acceptLoop(l, quit, coord, disp, &wg)
	}()

	log.Printf("wallpaperd: listening on %s", *socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("wallpaperd: shutting down")
	close(quit)
	_ = l.Close()
	coord.Shutdown()
	disp.Close()
	wg.Wait()
}

func acceptLoop(l net.Listener, quit chan struct{}, coord *processor.Coordinator, disp *compositor.Display, wg *sync.WaitGroup) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-quit:
				return
			default:
				log.Printf("wallpaperd: accept: %v", err)
				continue
			}
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			handleConn(c, coord, disp)
		}(conn)
	}
}

func handleConn(c net.Conn, coord *processor.Coordinator, disp *compositor.Display) {
	hdr, payload, err := protocol.ReadMessage(c)
	if err != nil {
		log.Printf("wallpaperd: reading request: %v", err)
		return
	}
	switch hdr.Type {
	case protocol.MsgRequestBatch:
		handleRequestBatch(c, payload, coord, disp)
	case protocol.MsgClear:
		handleClear(c, payload, coord)
	default:
		replyErr(c, fmt.Errorf("unexpected message type %d", hdr.Type))
	}
}

func handleRequestBatch(c net.Conn, payload []byte, coord *processor.Coordinator, disp *compositor.Display) {
	batch, err := protocol.DecodeRequestBatch(payload)
	if err != nil {
		replyErr(c, fmt.Errorf("decoding request batch: %w", err))
		return
	}

	requests, err := toRequests(batch, disp)
	if err != nil {
		replyErr(c, err)
		return
	}

	if err := coord.Process(requests); err != nil {
		replyErr(c, err)
		return
	}

	replyOk(c)
}

func handleClear(c net.Conn, payload []byte, coord *processor.Coordinator) {
	req, err := protocol.DecodeClearRequest(payload)
	if err != nil {
		replyErr(c, fmt.Errorf("decoding clear request: %w", err))
		return
	}
	if err := coord.Clear(req.Outputs); err != nil {
		replyErr(c, err)
		return
	}
	replyOk(c)
}

func toRequests(batch protocol.RequestBatch, disp *compositor.Display) ([]processor.Request, error) {
	out := make([]processor.Request, len(batch.Requests))
	for i, w := range batch.Requests {
		filter, ok := resize.ParseFilter(w.Filter)
		if !ok {
			return nil, fmt.Errorf("unknown filter %q for outputs %v", w.Filter, w.Outputs)
		}
		for _, name := range w.Outputs {
			if err := disp.EnsureOutput(name, int(w.Width), int(w.Height), w.Old); err != nil {
				return nil, fmt.Errorf("binding output %q: %w", name, err)
			}
		}
		out[i] = processor.Request{
			Outputs: w.Outputs,
			Width:   int(w.Width),
			Height:  int(w.Height),
			Old:     w.Old,
			Path:    w.Path,
			Filter:  filter,
			Step:    w.Step,
			Period:  time.Duration(w.PeriodMs) * time.Millisecond,
		}
	}
	return out, nil
}

func replyOk(c net.Conn) {
	sendReply(c, protocol.Reply{})
}

func replyErr(c net.Conn, err error) {
	log.Printf("wallpaperd: request failed: %v", err)
	sendReply(c, protocol.Reply{Message: err.Error()})
}

func sendReply(c net.Conn, reply protocol.Reply) {
	payload, err := protocol.EncodeReply(reply)
	if err != nil {
		log.Printf("wallpaperd: encoding reply: %v", err)
		return
	}
	hdr := protocol.Header{Version: protocol.Version, Type: protocol.MsgReply, Flags: protocol.FlagChecksum}
	if err := protocol.WriteMessage(c, hdr, payload); err != nil {
		log.Printf("wallpaperd: sending reply: %v", err)
	}
}
