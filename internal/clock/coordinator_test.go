package clock

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net"
	"testing"
	"time"

	"github.com/tss-groundstation/stationd/internal/engine"
	"github.com/tss-groundstation/stationd/internal/jsonview"
	"github.com/tss-groundstation/stationd/internal/registry"
	"github.com/tss-groundstation/stationd/internal/router"
	"github.com/tss-groundstation/stationd/internal/wire"
)

// startTestCoordinator brings up a full actor over a loopback UDP socket:
// real engine, real router, real store, no Redis, no DUST sender.
func startTestCoordinator(t *testing.T) (*Coordinator, *jsonview.Store, net.PacketConn, net.Addr) {
	t.Helper()

	store := jsonview.NewStore(t.TempDir(), nil)
	table := &registry.Table{
		Fields:     map[string]*registry.Field{},
		Components: map[string]*registry.Component{},
	}
	eng, err := engine.LoadAndInitialize(store, 1, table, nil)
	if err != nil {
		t.Fatalf("LoadAndInitialize: %v", err)
	}
	rtr := router.New(store, eng)

	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen (server): %v", err)
	}
	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		serverConn.Close()
		t.Fatalf("listen (client): %v", err)
	}

	c := New(eng, rtr, store, serverConn, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	t.Cleanup(func() {
		cancel()
		c.Stop()
		serverConn.Close()
		clientConn.Close()
	})
	return c, store, clientConn, serverConn.LocalAddr()
}

func exchange(t *testing.T, client net.PacketConn, server net.Addr, packet []byte) []byte {
	t.Helper()
	if _, err := client.WriteTo(packet, server); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	buf := make([]byte, 4096)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	return buf[:n]
}

func postPacket(timestamp uint32, command uint16, valueBits uint32) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint32(out[0:4], timestamp)
	binary.BigEndian.PutUint32(out[4:8], uint32(command))
	binary.BigEndian.PutUint32(out[8:12], valueBits)
	return out
}

func TestUDPPostRoundTripAppliesBooleanLeaf(t *testing.T) {
	_, store, client, server := startTestCoordinator(t)

	resp := exchange(t, client, server, postPacket(1, 2011, math.Float32bits(1.0)))
	if len(resp) != 4 || binary.BigEndian.Uint32(resp) != 1 {
		t.Fatalf("expected status=1 acknowledgement, got %v", resp)
	}

	tree, err := store.Load("EVA")
	if err != nil {
		t.Fatalf("loading EVA view: %v", err)
	}
	leaf, _ := tree["dcu"].(map[string]any)["eva1"].(map[string]any)["batt"].(map[string]any)["lu"]
	if leaf != true {
		t.Errorf("dcu.eva1.batt.lu = %v, want boolean true per the command's scalar kind", leaf)
	}
}

func TestUDPPostUnknownCodeIsRejected(t *testing.T) {
	_, _, client, server := startTestCoordinator(t)

	resp := exchange(t, client, server, postPacket(1, 9999, 0))
	if len(resp) != 4 || binary.BigEndian.Uint32(resp) != 0 {
		t.Fatalf("expected status=0 rejection, got %v", resp)
	}
}

func TestUDPGetDumpsFramedJSON(t *testing.T) {
	_, store, client, server := startTestCoordinator(t)
	if err := store.Save("EVA", map[string]any{"status": map[string]any{"started": false}}); err != nil {
		t.Fatalf("seeding EVA view: %v", err)
	}

	get := make([]byte, 8)
	binary.BigEndian.PutUint32(get[0:4], 77)
	binary.BigEndian.PutUint32(get[4:8], 2)
	resp := exchange(t, client, server, get)

	if len(resp) < 9 {
		t.Fatalf("response too short: %d bytes", len(resp))
	}
	if binary.BigEndian.Uint32(resp[0:4]) != 77 || binary.BigEndian.Uint32(resp[4:8]) != 2 {
		t.Errorf("echoed header mismatch: %v", resp[:8])
	}
	if resp[len(resp)-1] != 0 {
		t.Error("payload must be null-terminated")
	}
	var tree map[string]any
	if err := json.Unmarshal(resp[8:len(resp)-1], &tree); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if _, ok := tree["status"]; !ok {
		t.Errorf("expected the dumped EVA tree, got %v", tree)
	}
}

func TestRegistrationRecordsSenderAndLiDARArrayLands(t *testing.T) {
	_, store, client, server := startTestCoordinator(t)

	reg := make([]byte, 8)
	binary.BigEndian.PutUint32(reg[4:8], uint32(router.Registration))
	if _, err := client.WriteTo(reg, server); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	lidar := make([]byte, 8)
	binary.BigEndian.PutUint32(lidar[4:8], uint32(router.LiDAR))
	for i := 0; i < 17; i++ {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(i)))
		lidar = append(lidar, b[:]...)
	}
	resp := exchange(t, client, server, lidar)
	if binary.BigEndian.Uint32(resp) != 1 {
		t.Fatalf("expected LiDAR write acknowledged, got %v", resp)
	}

	tree, err := store.Load("LTV")
	if err != nil {
		t.Fatalf("loading LTV view: %v", err)
	}
	ranges, _ := tree["lidar"].(map[string]any)["ranges"].([]any)
	if len(ranges) != 17 {
		t.Fatalf("expected 17 LiDAR points, got %d", len(ranges))
	}
	if got := store.GetField("ROVER", "pr_telemetry.dust_connected", 0); got != 1 {
		t.Errorf("dust_connected = %v, want 1 after registration", got)
	}
}

func TestSubmitFormSerializesThroughActor(t *testing.T) {
	c, store, _, _ := startTestCoordinator(t)

	if !c.SubmitForm("rover.pr_telemetry.throttle_position", "0.5") {
		t.Fatal("expected the form write to be accepted")
	}
	if got := store.GetField("ROVER", "pr_telemetry.throttle_position", 0); got != 0.5 {
		t.Errorf("throttle_position = %v, want 0.5", got)
	}

	if c.SubmitForm("nodots", "1") {
		t.Error("a route with fewer than two parts must be rejected")
	}
}

// Guards the wire contract the coordinator depends on: a 12-byte POST
// decodes with the same big-endian word the client encoded, regardless of
// host byte order.
func TestPostValueBitsSurviveWireDecode(t *testing.T) {
	in, err := wire.DecodeInbound(postPacket(3, 1107, math.Float32bits(1.5)))
	if err != nil {
		t.Fatalf("DecodeInbound: %v", err)
	}
	if math.Float32frombits(in.ValueBits) != 1.5 {
		t.Errorf("value bits = %v, want bit pattern of 1.5", in.ValueBits)
	}
}
