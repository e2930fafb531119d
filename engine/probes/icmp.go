package probes

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"netwatch/engine/models"
)

const icmpProtocolICMP = 1 // IANA protocol number for ICMP, per golang.org/x/net/icmp conventions

// packetPacing is the inter-packet delay applied when Count > 1, matching
// the original implementation's 0.5s spacing between echo requests.
const packetPacing = 500 * time.Millisecond

// ICMPDriver sends a set of echo requests and reports mean latency and
// packet loss, grounded on the pacing/timeout shape of the uping
// sender/listener pair (other_examples malbeclabs-doublezero) adapted to
// the unprivileged "udp" ICMP network golang.org/x/net/icmp supports on
// most platforms without raw-socket capability.
type ICMPDriver struct {
	id int
}

// NewICMPDriver constructs a driver. id seeds the ICMP echo identifier so
// concurrent probes from the same process don't collide on reply matching.
func NewICMPDriver() *ICMPDriver {
	return &ICMPDriver{id: os.Getpid() & 0xffff}
}

func (d *ICMPDriver) Protocol() models.Protocol { return models.ProtocolICMP }

// Probe sends opts.Count echo requests, one at a time with packetPacing
// spacing, each bounded by opts.Timeout (default 1s per spec.md §4.2).
func (d *ICMPDriver) Probe(ctx context.Context, ip string, opts Options) models.ProbeResult {
	count := opts.Count
	if count <= 0 {
		count = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		return models.ProbeResult{Success: false, Protocol: models.ProtocolICMP, Extra: map[string]any{}, Error: err.Error()}
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4", ip)
	if err != nil {
		return models.ProbeResult{Success: false, Protocol: models.ProtocolICMP, Extra: map[string]any{}, Error: err.Error()}
	}

	responses := make([]any, 0, count)
	var latencies []float64
	successCount := 0

	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			responses = append(responses, "error")
			continue
		default:
		}

		lat, perr := d.sendOne(conn, dst, i, timeout)
		if perr != nil {
			responses = append(responses, classifyPacketOutcome(perr))
		} else {
			responses = append(responses, lat)
			latencies = append(latencies, lat)
			successCount++
		}

		if i < count-1 {
			select {
			case <-ctx.Done():
			case <-time.After(packetPacing):
			}
		}
	}

	packetLoss := float64(count-successCount) / float64(count) * 100.0
	var latencyPtr *float64
	if successCount > 0 {
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		mean := sum / float64(successCount)
		latencyPtr = &mean
	}

	return models.ProbeResult{
		Success:   packetLoss < 100.0,
		LatencyMS: latencyPtr,
		Protocol:  models.ProtocolICMP,
		Extra: map[string]any{
			"packet_loss": packetLoss,
			"responses":   responses,
		},
	}
}

func (d *ICMPDriver) sendOne(conn *icmp.PacketConn, dst *net.IPAddr, seq int, timeout time.Duration) (float64, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{ID: d.id, Seq: seq + 1, Data: []byte("netwatch")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return 0, fmt.Errorf("write echo: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			if os.IsTimeout(err) {
				return 0, errTimeout
			}
			return 0, fmt.Errorf("read echo reply: %w", err)
		}
		if peer.String() != dst.String() {
			continue
		}
		parsed, err := icmp.ParseMessage(icmpProtocolICMP, rb[:n])
		if err != nil {
			continue
		}
		reply, ok := parsed.Body.(*icmp.Echo)
		if !ok || parsed.Type != ipv4.ICMPTypeEchoReply || reply.ID != d.id || reply.Seq != seq+1 {
			continue
		}
		return float64(time.Since(start)) / float64(time.Millisecond), nil
	}
}

var errTimeout = fmt.Errorf("timeout")

func classifyPacketOutcome(err error) string {
	if err == errTimeout {
		return "timeout"
	}
	return "error"
}
