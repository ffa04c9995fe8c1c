// Package transition implements the pixel-space fade from the buffer
// currently displayed on a set of outputs to a newly resized buffer (§4.3
// of the core contract).
package transition

import (
	"fmt"
	"time"

	"github.com/fadewall/wallpaperd/deltacodec"
	"github.com/fadewall/wallpaperd/preempt"
	"github.com/fadewall/wallpaperd/sink"
)

// Result reports how a transition ended.
type Result struct {
	// Completed is false when the transition was preempted or the sink
	// disconnected before every surviving output reached the new image.
	Completed bool
	// Outputs is the worker's output set as it stood when the transition
	// stopped, after any partial preemption has been applied.
	Outputs []string
	// Last is the on-screen buffer last sent to the sink (equal to the new
	// buffer in its colour channels, if the transition completed; its alpha
	// bytes are 0xFF).
	Last []byte
}

// Run fades old into next for outputs at the given step and frame period,
// publishing intermediate frames to frames and polling preempt for
// cancellation between frames. old and next must have equal length; a
// mismatch is a programmer error and Run panics. step must be in [1,255];
// step == 0 would never converge and is rejected.
func Run(outputs []string, old, next []byte, step byte, period time.Duration, frames sink.Chan, pre *preempt.Handle) Result {
	if step == 0 {
		panic("transition: step must be > 0")
	}
	if len(old) != len(next) {
		panic(fmt.Sprintf("transition: mismatched buffer lengths %d != %d", len(old), len(next)))
	}

	live := append([]string(nil), outputs...)
	o := append([]byte(nil), old...)
	t := make([]byte, len(old))
	for i := range t {
		t[i] = 0xFF
	}

	frameStart := time.Now()
	for {
		allSnapped := true
		for p := 0; p+3 < len(o); p += 4 {
			for c := 0; c < 3; c++ {
				oc, nc := o[p+c], next[p+c]
				d := channelDistance(oc, nc)
				switch {
				case d <= step:
					t[p+c] = nc
				case oc > nc:
					allSnapped = false
					t[p+c] = oc - step
				default:
					allSnapped = false
					t[p+c] = oc + step
				}
			}
			// Alpha (byte 3) is never touched: it stays at the working
			// buffer's initial 0xFF for every frame of the transition.
		}

		pack := deltacodec.Pack(o, t)
		timeout := period - time.Since(frameStart)

		drop, signaled := pre.Poll(timeout)
		if signaled {
			live = dropOutputs(live, drop)
			if len(live) == 0 || len(drop) == 0 {
				return Result{Completed: false, Outputs: live, Last: o}
			}
		}

		if !trySend(frames, sink.Frame{Outputs: append([]string(nil), live...), Pack: pack}) {
			return Result{Completed: false, Outputs: live, Last: o}
		}

		frameStart = time.Now()
		copy(o, t)

		if allSnapped {
			return Result{Completed: true, Outputs: live, Last: o}
		}
	}
}

func channelDistance(a, b byte) byte {
	if a > b {
		return a - b
	}
	return b - a
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

// trySend publishes a frame to the sink, treating a closed sink channel as
// a terminal condition equivalent to preemption rather than a panic.
func trySend(frames sink.Chan, frame sink.Frame) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	frames <- frame
	return true
}
