// Package processor is the coordinator that turns a batch of rendering
// requests into running workers, arbitrating preemption between them (§4.5,
// §5 of the core contract).
package processor

import (
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fadewall/wallpaperd/anim"
	"github.com/fadewall/wallpaperd/deltacodec"
	"github.com/fadewall/wallpaperd/preempt"
	"github.com/fadewall/wallpaperd/resize"
	"github.com/fadewall/wallpaperd/sink"
	"github.com/fadewall/wallpaperd/transition"
)

func transitionRun(req Request, newBuf []byte, frames sink.Chan, h *preempt.Handle) transition.Result {
	return transition.Run(req.Outputs, req.Old, newBuf, req.Step, req.Period, frames, h)
}

// Request is one output set's worth of rendering work.
type Request struct {
	Outputs []string
	Width   int
	Height  int
	Old     []byte
	Path    string
	Filter  resize.Filter
	Step    byte
	Period  time.Duration
}

// Coordinator holds the live set of worker preemption handles and the sink
// every worker publishes frames to. The zero value is not usable; use New.
type Coordinator struct {
	mu      sync.Mutex
	workers []*preempt.Handle
	frames  sink.Chan
	wg      sync.WaitGroup
}

// New creates a coordinator publishing to frames.
func New(frames sink.Chan) *Coordinator {
	return &Coordinator{frames: frames}
}

// Process validates and decodes each request's source image in order,
// spawning a worker for every request that decodes cleanly. A request whose
// image cannot be decoded aborts the rest of the batch and returns its
// error; requests already processed earlier in the batch remain committed
// (§7 of the core contract).
func (c *Coordinator) Process(requests []Request) error {
	for _, req := range requests {
		if len(req.Outputs) == 0 {
			return fmt.Errorf("processor: request has no target outputs")
		}
		if req.Step == 0 {
			return fmt.Errorf("processor: step must be in [1,255] for outputs %v", req.Outputs)
		}

		f, err := os.Open(req.Path)
		if err != nil {
			return fmt.Errorf("processor: opening %q: %w", req.Path, err)
		}
		img, format, err := image.Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("processor: decoding %q: %w", req.Path, err)
		}

		resized := resize.ToSurfaceBuffer(img, req.Width, req.Height, req.Filter)

		c.stop(req.Outputs)
		c.spawn(req, resized, format)
	}
	return nil
}

// Clear drops outputs from whichever workers currently own them, leaving
// those outputs with no active wallpaper, without starting any new work.
// outputs must be non-empty; an empty set would be indistinguishable from
// Shutdown's broadcast signal.
func (c *Coordinator) Clear(outputs []string) error {
	if len(outputs) == 0 {
		return fmt.Errorf("processor: clear requires at least one output")
	}
	c.stop(outputs)
	return nil
}

// stop sends outs to every live worker so that any worker owning one of
// those outputs drops it. A nil or empty outs is the shutdown signal.
// Workers that have already exited are pruned from the list.
func (c *Coordinator) stop(outs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.workers[:0:0]
	for _, h := range c.workers {
		if h.Send(outs) {
			live = append(live, h)
		}
	}
	c.workers = live
}

func (c *Coordinator) spawn(req Request, newBuf []byte, format string) {
	h := preempt.New()

	c.mu.Lock()
	c.workers = append(c.workers, h)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer h.MarkDone()
		runWorker(req, newBuf, format, c.frames, h)
	}()
}

// Shutdown broadcasts the empty drop-set (the shutdown signal) to every
// live worker until none remain, then waits for them to exit. It guarantees
// no worker outlives the coordinator (§5).
func (c *Coordinator) Shutdown() {
	for {
		c.mu.Lock()
		n := len(c.workers)
		c.mu.Unlock()
		if n == 0 {
			break
		}
		c.stop(nil)
	}
	c.wg.Wait()
}

func runWorker(req Request, newBuf []byte, format string, frames sink.Chan, h *preempt.Handle) {
	res := transitionRun(req, newBuf, frames, h)
	if !res.Completed {
		log.Printf("processor: worker %v exiting (preempted during transition)", req.Outputs)
		return
	}
	if !anim.IsAnimatedFormat(format) {
		log.Printf("processor: worker %v exiting (still image)", req.Outputs)
		return
	}
	runAnimation(req, res.Outputs, newBuf, format, frames, h)
}

type cacheEntry struct {
	pack  deltacodec.ReadyPack
	delay time.Duration
}

func runAnimation(req Request, outputs []string, firstFrame []byte, format string, frames sink.Chan, h *preempt.Handle) {
	live := append([]string(nil), outputs...)
	length := len(firstFrame)

	rawCh := make(chan anim.RawFrame, 4)
	var closeOnce sync.Once
	abort := func() { closeOnce.Do(func() { close(rawCh) }) }
	go func() {
		defer abort()
		if err := anim.Stream(req.Path, format, req.Width, req.Height, req.Filter, firstFrame, rawCh); err != nil {
			log.Printf("processor: animation decode for %q stopped: %v", req.Path, err)
		}
	}()

	var cache []cacheEntry
	frameStart := time.Now()
	for raw := range rawCh {
		ready := raw.Pack.Ready(length)
		cache = append(cache, cacheEntry{pack: ready, delay: raw.Delay})

		if !deliverAndPace(&live, ready, raw.Delay, &frameStart, frames, h) {
			abort()
			return
		}
	}

	if len(cache) == 0 {
		log.Printf("processor: worker %v exiting (single-frame source, no loop)", req.Outputs)
		return
	}

	log.Printf("processor: worker %v animation cache built (%d frames)", req.Outputs, len(cache))
	for {
		for _, entry := range cache {
			if !deliverAndPace(&live, entry.pack, entry.delay, &frameStart, frames, h) {
				return
			}
		}
	}
}

// deliverAndPace polls the preemption channel with the remaining frame
// timeout, applies any drop-set, and sends the frame to the surviving
// outputs. It reports whether the worker should keep running.
func deliverAndPace(live *[]string, pack deltacodec.ReadyPack, delay time.Duration, frameStart *time.Time, frames sink.Chan, h *preempt.Handle) bool {
	timeout := delay - time.Since(*frameStart)
	drop, signaled := h.Poll(timeout)
	if signaled {
		*live = dropOutputs(*live, drop)
		if len(*live) == 0 || len(drop) == 0 {
			return false
		}
	}

	if !trySend(frames, sink.Frame{Outputs: append([]string(nil), *live...), Pack: pack}) {
		return false
	}
	*frameStart = time.Now()
	return true
}

func dropOutputs(live, drop []string) []string {
	out := live[:0:0]
	for _, o := range live {
		keep := true
		for _, d := range drop {
			if o == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, o)
		}
	}
	return out
}

func trySend(frames sink.Chan, frame sink.Frame) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	frames <- frame
	return true
}
