// Package compositor is the thin adapter between the core's sink channel
// and a real Wayland display: it owns one wl_surface per output name and
// applies every packed frame against that output's retained canvas before
// submitting damage (§A5 of the core contract). Surface/buffer allocation
// and damage submission are explicitly out of the core's scope; this
// package exists so the daemon binary is complete and exercises
// honnef.co/go/libwayland.
package compositor

import (
	"fmt"
	"log"
	"os"
	"sync"

	wayland "honnef.co/go/libwayland"

	"github.com/fadewall/wallpaperd/deltacodec"
	"github.com/fadewall/wallpaperd/sink"
)

// Display owns the Wayland connection and the per-output surfaces bound
// to it. The zero value is not usable; use Connect.
type Display struct {
	dsp  *wayland.Display
	comp *wayland.Compositor
	shm  *wayland.Shm

	mu      sync.Mutex
	outputs map[string]*outputSurface
}

type outputSurface struct {
	width, height int
	canvas        []byte
	surf          *wayland.Surface
	pool          *wayland.ShmPool
	buf           *wayland.Buffer
	file          *os.File
	mapped        []byte
}

// Connect dials the compositor's Wayland socket and binds the globals
// this adapter needs (wl_compositor, wl_shm).
func Connect() (*Display, error) {
	dsp, err := wayland.Connect()
	if err != nil {
		return nil, fmt.Errorf("compositor: connect: %w", err)
	}

	d := &Display{dsp: dsp, outputs: make(map[string]*outputSurface)}

	reg := dsp.Registry()
	reg.OnGlobal = func(name uint32, iface string, version uint32) {
		switch iface {
		case "wl_compositor":
			d.comp = reg.BindCompositor(name, version)
		case "wl_shm":
			d.shm = reg.BindShm(name, version)
		}
	}
	if _, err := dsp.Roundtrip(); err != nil {
		return nil, fmt.Errorf("compositor: initial roundtrip: %w", err)
	}
	if d.comp == nil || d.shm == nil {
		return nil, fmt.Errorf("compositor: compositor did not advertise wl_compositor/wl_shm")
	}
	return d, nil
}

// Run drains frames until the channel is closed, applying each one
// against its outputs' retained canvases and submitting damage.
func (d *Display) Run(frames sink.Chan) {
	for f := range frames {
		for _, name := range f.Outputs {
			d.deliver(name, f.Pack)
		}
		d.dsp.DispatchPending()
	}
}

func (d *Display) deliver(name string, pack deltacodec.ReadyPack) {
	d.mu.Lock()
	out, ok := d.outputs[name]
	d.mu.Unlock()
	if !ok {
		log.Printf("compositor: dropping frame for unbound output %q", name)
		return
	}

	out.canvas = deltacodec.Apply(pack, out.canvas)
	copy(out.mapped, out.canvas)
	out.surf.Attach(out.buf)
	out.surf.Damage(0, 0, int32(out.width), int32(out.height))
	out.surf.Commit()
}

// EnsureOutput binds name's surface on first use and is a no-op on every
// later call for the same name, so the daemon can call it once per
// request without tracking which outputs it has already seen.
func (d *Display) EnsureOutput(name string, width, height int, seed []byte) error {
	d.mu.Lock()
	_, bound := d.outputs[name]
	d.mu.Unlock()
	if bound {
		return nil
	}
	if len(seed) != width*height*4 {
		seed = make([]byte, width*height*4)
	}
	return d.bindOutput(name, width, height, seed)
}

// bindOutput creates the wl_surface and shm-backed buffer for a newly
// discovered output name, sized width x height. seed is the output's
// starting canvas (its already-resized current wallpaper).
func (d *Display) bindOutput(name string, width, height int, seed []byte) error {
	surf := d.comp.CreateSurface()

	stride := width * 4
	size := stride * height
	file, err := os.CreateTemp("", "wallpaperd-shm-*")
	if err != nil {
		return fmt.Errorf("compositor: creating shm backing file: %w", err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return fmt.Errorf("compositor: sizing shm backing file: %w", err)
	}

	mapped, err := mmapFile(file, size)
	if err != nil {
		file.Close()
		return fmt.Errorf("compositor: mapping shm backing file: %w", err)
	}
	copy(mapped, seed)

	pool := d.shm.CreatePool(int32(file.Fd()), int32(size))
	buf := pool.CreateBuffer(0, int32(width), int32(height), int32(stride), wayland.ShmFormatArgb8888)

	d.mu.Lock()
	d.outputs[name] = &outputSurface{
		width: width, height: height,
		canvas: append([]byte(nil), seed...),
		surf:   surf, pool: pool, buf: buf, file: file, mapped: mapped,
	}
	d.mu.Unlock()

	surf.Attach(buf)
	surf.Damage(0, 0, int32(width), int32(height))
	surf.Commit()
	return nil
}

// Close tears down every bound output and disconnects from the display.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, out := range d.outputs {
		out.buf.Destroy()
		out.pool.Destroy()
		out.surf.Destroy()
		out.file.Close()
		delete(d.outputs, name)
	}
	d.dsp.Disconnect()
}
