// Package sink defines the single outbound channel shape workers use to
// publish packed frames. The core never touches a display surface directly;
// it only ever sends on this channel (§4.6 of the core contract).
package sink

import "github.com/fadewall/wallpaperd/deltacodec"

// Frame is one unit of outbound work: a packed delta addressed to the
// output names that should receive it.
type Frame struct {
	Outputs []string
	Pack    deltacodec.ReadyPack
}

// Chan is a bounded channel of outbound frames. The adapter on the far end
// (see package compositor) is expected to decode each pack against its
// per-output canvas and submit buffer damage; it does not back-pressure
// with unbounded queueing, so workers block on the channel send when the
// consumer is slow.
type Chan chan Frame

// New creates a sink channel with the given capacity.
func New(capacity int) Chan {
	return make(Chan, capacity)
}
