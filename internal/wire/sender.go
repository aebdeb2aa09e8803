package wire

import (
	"net"

	"github.com/tss-groundstation/stationd/internal/jsonview"
	"github.com/tss-groundstation/stationd/internal/router"
)

// Sender emits the outbound 0.2s tick to the registered visual simulator:
// brakes, lights, steering, throttle, and conditionally a ping, each a
// separate 12-byte POST datagram, in that fixed order.
type Sender struct {
	conn   net.PacketConn
	store  *jsonview.Store
	router *router.Router
}

// NewSender builds a Sender over an already-bound UDP socket.
func NewSender(conn net.PacketConn, store *jsonview.Store, r *router.Router) *Sender {
	return &Sender{conn: conn, store: store, router: r}
}

// Tick sends the DUST outbound sequence if a visual simulator has
// registered. On any send failure it clears dust_connected and aborts the
// remainder of the sequence for this tick.
func (s *Sender) Tick(timestamp uint32) {
	if !s.router.Registered() {
		return
	}
	addr, err := net.ResolveUDPAddr("udp", s.router.DustAddr())
	if err != nil {
		s.router.ClearRegistration()
		return
	}

	values := []struct {
		command uint16
		path    string
	}{
		{router.OutBrakes, "pr_telemetry.brake_applied"},
		{router.OutLights, "pr_telemetry.headlights_on"},
		{router.OutSteering, "pr_telemetry.steering_angle"},
		{router.OutThrottle, "pr_telemetry.throttle_position"},
	}

	for _, v := range values {
		f := s.store.GetField("ROVER", v.path, 0)
		if !s.send(addr, EncodeOutboundPost(timestamp, v.command, float32(f))) {
			return
		}
	}

	if s.store.GetField("LTV", "signal.ping_requested", 0) != 0 {
		if !s.send(addr, EncodeOutboundPostBool(timestamp, router.OutPing, true)) {
			return
		}
		s.clearPingRequest()
	}
}

func (s *Sender) send(addr net.Addr, payload []byte) bool {
	if _, err := s.conn.WriteTo(payload, addr); err != nil {
		s.router.ClearRegistration()
		return false
	}
	return true
}

// clearPingRequest resets LTV.signal.ping_requested and decrements
// pings_left if positive.
func (s *Sender) clearPingRequest() {
	tree, err := s.store.Load("LTV")
	if err != nil {
		return
	}
	signal, _ := tree["signal"].(map[string]any)
	if signal == nil {
		return
	}
	signal["ping_requested"] = false
	if left, ok := signal["pings_left"].(float64); ok && left > 0 {
		signal["pings_left"] = left - 1
	}
	_ = s.store.Save("LTV", tree)
}
