// Package clock drives the station daemon's single simulation actor.
// internal/engine.Engine is not safe for concurrent use, so this package
// gives it exactly one goroutine and funnels every other source of
// mutation (engine ticks, UDP commands, operator writes) through channels
// into that goroutine's loop.
package clock

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tss-groundstation/stationd/internal/engine"
	"github.com/tss-groundstation/stationd/internal/health"
	"github.com/tss-groundstation/stationd/internal/jsonview"
	"github.com/tss-groundstation/stationd/internal/router"
	"github.com/tss-groundstation/stationd/internal/values"
	"github.com/tss-groundstation/stationd/internal/wire"
)

const (
	// EngineTickInterval is the engine's fixed 1 Hz advance.
	EngineTickInterval = time.Second
	// DustTickInterval is the outbound visual-simulator cadence.
	DustTickInterval = 200 * time.Millisecond

	udpQueueDepth  = 64
	formQueueDepth = 16
)

// udpPacket is one inbound datagram queued for the actor.
type udpPacket struct {
	data []byte
	addr net.Addr
}

// formWrite is one inbound HTTP form write queued for the actor; done
// carries back whether the router accepted it.
type formWrite struct {
	path  string
	value string
	done  chan bool
}

// Metrics is a snapshot of the actor's tick performance, reported through
// the health checker.
type Metrics struct {
	TotalTicks   int64
	LastTickTime time.Duration
	MaxTickTime  time.Duration
}

// Coordinator is the single actor that owns the engine and every piece of
// state reachable from it. Nothing outside this package may call Engine
// or Router methods directly once Run has started — UDP packets and form
// writes are handed in over channels and applied strictly in arrival
// order, on one goroutine.
type Coordinator struct {
	eng     *engine.Engine
	rtr     *router.Router
	store   *jsonview.Store
	conn    net.PacketConn
	sender  *wire.Sender
	checker *health.Checker

	udpCh  chan udpPacket
	formCh chan formWrite
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	metrics Metrics
}

// New builds a Coordinator. conn and sender may share the same underlying
// socket (the sender writes outbound, the read loop below reads inbound).
// checker may be nil if health reporting is disabled.
func New(eng *engine.Engine, rtr *router.Router, store *jsonview.Store, conn net.PacketConn, sender *wire.Sender, checker *health.Checker) *Coordinator {
	return &Coordinator{
		eng:     eng,
		rtr:     rtr,
		store:   store,
		conn:    conn,
		sender:  sender,
		checker: checker,
		udpCh:   make(chan udpPacket, udpQueueDepth),
		formCh:  make(chan formWrite, formQueueDepth),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SubmitForm queues an HTTP form write for the actor and blocks until it
// has been applied, returning whether the router accepted it. Safe to
// call from any goroutine — this is the HTTP handler's only door into the
// engine.
func (c *Coordinator) SubmitForm(path, value string) bool {
	done := make(chan bool, 1)
	select {
	case c.formCh <- formWrite{path: path, value: value, done: done}:
	case <-c.stopCh:
		return false
	}
	select {
	case ok := <-done:
		return ok
	case <-c.stopCh:
		return false
	}
}

// Metrics returns the latest tick-performance snapshot.
func (c *Coordinator) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Run starts the UDP read goroutine and the actor's select loop, blocking
// until ctx is cancelled or Stop is called.
func (c *Coordinator) Run(ctx context.Context) {
	go c.readUDP()

	engineTicker := time.NewTicker(EngineTickInterval)
	dustTicker := time.NewTicker(DustTickInterval)
	defer engineTicker.Stop()
	defer dustTicker.Stop()
	defer close(c.doneCh)

	var dustSeq uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-engineTicker.C:
			c.runEngineTick()
		case <-dustTicker.C:
			dustSeq++
			if c.sender != nil {
				c.sender.Tick(dustSeq)
			}
		case pkt := <-c.udpCh:
			c.handlePacket(pkt)
		case fw := <-c.formCh:
			fw.done <- c.rtr.ApplyPath(fw.path, fw.value)
		}
	}
}

// Stop signals the actor loop to exit and waits for it to drain.
func (c *Coordinator) Stop() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	<-c.doneCh
}

// runEngineTick advances the station-timing ancillary before advancing
// the engine itself, since the task-board completion time seeds the fault
// scheduler's firing condition.
func (c *Coordinator) runEngineTick() {
	start := time.Now()

	justCompleted, specTime := c.rtr.TickStationTimers(EngineTickInterval.Seconds())
	if justCompleted {
		c.eng.SetTaskBoardCompletion(specTime)
	}
	c.eng.Tick(EngineTickInterval.Seconds())
	c.eng.Project()

	elapsed := time.Since(start)
	c.mu.Lock()
	c.metrics.TotalTicks++
	c.metrics.LastTickTime = elapsed
	if elapsed > c.metrics.MaxTickTime {
		c.metrics.MaxTickTime = elapsed
	}
	c.mu.Unlock()

	if c.checker != nil {
		c.checker.SetEngineStats(health.EngineStats{
			TotalFields:     c.eng.TotalFieldCount(),
			Initialized:     c.eng.Initialized(),
			LastTickSeconds: elapsed.Seconds(),
		})
	}
}

// readUDP is the only other goroutine besides the actor loop; it blocks
// on the socket and hands decoded-free raw packets to the actor, never
// touching engine or router state itself.
func (c *Coordinator) readUDP() {
	buf := make([]byte, 4096)
	for {
		n, addr, err := c.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
				log.Printf("clock: udp read error: %v", err)
				return
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case c.udpCh <- udpPacket{data: data, addr: addr}:
		case <-c.stopCh:
			return
		}
	}
}

// handlePacket dispatches one decoded inbound datagram: registration
// handshake, GET file-dump, LiDAR array, or a table-driven scalar POST.
func (c *Coordinator) handlePacket(pkt udpPacket) {
	in, err := wire.DecodeInbound(pkt.data)
	if err != nil {
		log.Printf("clock: malformed packet from %s: %v", pkt.addr, err)
		return
	}

	if in.Command == router.Registration {
		c.rtr.Register(pkt.addr.String())
		return
	}

	if in.LiDAR != nil {
		c.reply(pkt.addr, wire.EncodePostResponse(c.applyLiDAR(in.LiDAR)))
		return
	}

	if !in.IsPost {
		file, ok := router.LookupGet(in.Command)
		if !ok {
			return
		}
		payload, err := c.rtr.DumpFile(file)
		if err != nil {
			log.Printf("clock: dump %s: %v", file, err)
			return
		}
		c.reply(pkt.addr, wire.EncodeGetResponse(in.Timestamp, in.Command, payload))
		return
	}

	entry, ok := router.LookupPost(in.Command)
	if !ok {
		c.reply(pkt.addr, wire.EncodePostResponse(false))
		return
	}

	var valueString string
	if entry.Kind == router.ScalarBool {
		valueString = boolString(in.ValueBits != 0)
	} else {
		valueString = router.FormatFloat(values.FromWireBits(in.ValueBits).AsFloat())
	}

	applied := c.rtr.ApplyCode(in.Command, valueString)
	c.reply(pkt.addr, wire.EncodePostResponse(applied))
}

// applyLiDAR stores the 17-point range array under LTV.json directly —
// the command table's per-scalar ApplyPath has no vocabulary for an
// array value.
func (c *Coordinator) applyLiDAR(ranges []float32) bool {
	tree, err := c.store.Load("LTV")
	if err != nil {
		return false
	}
	lidar, _ := tree["lidar"].(map[string]any)
	if lidar == nil {
		lidar = map[string]any{}
		tree["lidar"] = lidar
	}
	out := make([]any, len(ranges))
	for i, v := range ranges {
		out[i] = float64(v)
	}
	lidar["ranges"] = out
	return c.store.Save("LTV", tree) == nil
}

func (c *Coordinator) reply(addr net.Addr, payload []byte) {
	if _, err := c.conn.WriteTo(payload, addr); err != nil {
		log.Printf("clock: reply to %s failed: %v", addr, err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
