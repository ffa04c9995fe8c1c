package transition

import (
	"bytes"
	"testing"
	"time"

	"github.com/fadewall/wallpaperd/deltacodec"
	"github.com/fadewall/wallpaperd/preempt"
	"github.com/fadewall/wallpaperd/sink"
)

func drainFrames(frames sink.Chan, old []byte) ([]sink.Frame, []byte) {
	var got []sink.Frame
	cur := append([]byte(nil), old...)
	for {
		select {
		case f := <-frames:
			got = append(got, f)
			cur = deltacodec.Apply(f.Pack, cur)
		default:
			return got, cur
		}
	}
}

func TestTransitionReachesTarget(t *testing.T) {
	old := make([]byte, 16) // 4 BGRA pixels, all zero
	next := []byte{}
	for i := 0; i < 4; i++ {
		next = append(next, 30, 20, 10, 255)
	}

	frames := sink.New(64)
	pre := preempt.New()

	res := Run([]string{"HDMI-1"}, old, next, 5, 16*time.Millisecond, frames, pre)
	if !res.Completed {
		t.Fatalf("expected transition to complete")
	}
	if !bytes.Equal(res.Last, next) {
		t.Fatalf("expected final buffer to equal target, got %v", res.Last)
	}

	emitted, reconstructed := drainFrames(frames, old)
	wantFrames := 6 // ceil(30/5)
	if len(emitted) != wantFrames {
		t.Fatalf("expected %d frames, got %d", wantFrames, len(emitted))
	}
	if !bytes.Equal(reconstructed, next) {
		t.Fatalf("replaying emitted frames did not reach target")
	}
}

func TestStepOnePanicsNever(t *testing.T) {
	old := make([]byte, 4)
	next := []byte{200, 0, 0, 255}
	frames := sink.New(512)
	pre := preempt.New()

	res := Run([]string{"A"}, old, next, 1, time.Millisecond, frames, pre)
	if !res.Completed {
		t.Fatalf("expected completion")
	}
}

func TestZeroStepPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for step=0")
		}
	}()
	Run([]string{"A"}, make([]byte, 4), make([]byte, 4), 0, time.Millisecond, sink.New(1), preempt.New())
}

func TestIdenticalBuffersCompleteImmediately(t *testing.T) {
	buf := []byte{1, 2, 3, 255}
	frames := sink.New(8)
	pre := preempt.New()
	res := Run([]string{"A"}, buf, buf, 10, time.Millisecond, frames, pre)
	if !res.Completed {
		t.Fatalf("expected immediate completion for identical buffers")
	}
	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame emitted, got %d", len(frames))
	}
}

func TestPreemptionStopsAfterOneMoreFrame(t *testing.T) {
	old := make([]byte, 4)
	next := []byte{250, 0, 0, 255}
	frames := sink.New(512)
	pre := preempt.New()

	done := make(chan Result, 1)
	go func() {
		done <- Run([]string{"A", "B"}, old, next, 1, 20*time.Millisecond, frames, pre)
	}()

	time.Sleep(5 * time.Millisecond)
	pre.Send([]string{"A", "B"})

	res := <-done
	if res.Completed {
		t.Fatalf("expected preemption, not completion")
	}
	if len(res.Outputs) != 0 {
		t.Fatalf("expected empty output set after total preemption, got %v", res.Outputs)
	}
	if len(frames) > 1 {
		t.Fatalf("expected at most one frame before the preemption took effect, got %d", len(frames))
	}
}

func TestDistanceToTargetIsMonotoneNonIncreasing(t *testing.T) {
	old := []byte{0, 0, 0, 255}
	next := []byte{137, 64, 201, 255}
	frames := sink.New(64)
	pre := preempt.New()

	Run([]string{"A"}, old, next, 7, time.Millisecond, frames, pre)

	prevDist := [3]int{257, 257, 257} // larger than any possible distance
	cur := append([]byte(nil), old...)
	for {
		select {
		case f := <-frames:
			cur = deltacodec.Apply(f.Pack, cur)
			for c := 0; c < 3; c++ {
				d := int(cur[c]) - int(next[c])
				if d < 0 {
					d = -d
				}
				if d > prevDist[c] {
					t.Fatalf("channel %d distance increased: %d > %d", c, d, prevDist[c])
				}
				prevDist[c] = d
			}
		default:
			return
		}
	}
}

func TestPartialPreemptionKeepsRemainingOutputs(t *testing.T) {
	old := make([]byte, 4)
	next := []byte{250, 0, 0, 255}
	frames := sink.New(512)
	pre := preempt.New()

	done := make(chan Result, 1)
	go func() {
		done <- Run([]string{"A", "B", "C"}, old, next, 1, 5*time.Millisecond, frames, pre)
	}()

	time.Sleep(2 * time.Millisecond)
	pre.Send([]string{"B"})
	time.Sleep(2 * time.Millisecond)
	pre.Send([]string{"A", "C"})

	res := <-done
	if res.Completed {
		t.Fatalf("expected preemption")
	}
	if len(res.Outputs) != 0 {
		t.Fatalf("expected all outputs eventually dropped, got %v", res.Outputs)
	}

	emitted, _ := drainFrames(frames, old)
	if len(emitted) == 0 {
		t.Fatalf("expected frames for the outputs left after dropping B")
	}
	last := emitted[len(emitted)-1].Outputs
	if len(last) != 2 || last[0] != "A" || last[1] != "C" {
		t.Fatalf("expected the last frame to address [A C], got %v", last)
	}
}
