package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"netwatch/engine/models"
)

// sysUpTimeOID is queried for the SNMP reachability health check (spec.md §4.2).
const sysUpTimeOID = "1.3.6.1.2.1.1.3.0"

// SNMPDriver performs a v2c GET with zero retries, grounded on the pschou
// gosnmp Prometheus example and kazuyuki114-snmp_collector's use of the
// same library for polling.
type SNMPDriver struct{}

func NewSNMPDriver() *SNMPDriver { return &SNMPDriver{} }

func (d *SNMPDriver) Protocol() models.Protocol { return models.ProtocolSNMP }

// Probe issues a single GET of sysUpTime.0. success = true iff the agent
// returns an integer-typed value.
func (d *SNMPDriver) Probe(ctx context.Context, ip string, opts Options) models.ProbeResult {
	return d.get(ctx, ip, sysUpTimeOID, opts)
}

// Get issues a GET for an arbitrary OID, reused by the SNMP metric collector
// (spec.md §4.7) for configured NodeMetric bindings.
func (d *SNMPDriver) Get(ctx context.Context, ip, oid string, opts Options) models.ProbeResult {
	return d.get(ctx, ip, oid, opts)
}

func (d *SNMPDriver) get(ctx context.Context, ip, oid string, opts Options) models.ProbeResult {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	community := opts.SNMPCommunity
	if community == "" {
		community = "public"
	}
	port := opts.SNMPPort
	if port <= 0 {
		port = 161
	}

	params := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      uint16(port),
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   timeout,
		Retries:   0,
		Context:   ctx,
	}

	start := time.Now()
	if err := params.Connect(); err != nil {
		return models.ProbeResult{Success: false, Protocol: models.ProtocolSNMP, Extra: map[string]any{}, Error: err.Error()}
	}
	defer params.Conn.Close()

	result, err := params.Get([]string{oid})
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		return models.ProbeResult{Success: false, Protocol: models.ProtocolSNMP, Extra: map[string]any{}, Error: err.Error()}
	}
	if len(result.Variables) == 0 {
		return models.ProbeResult{Success: false, Protocol: models.ProtocolSNMP, Extra: map[string]any{}, Error: "no data returned"}
	}

	v := result.Variables[0]
	switch v.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
		return models.ProbeResult{Success: false, Protocol: models.ProtocolSNMP, Extra: map[string]any{}, Error: "no such object"}
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Counter64, gosnmp.Uinteger32:
	default:
		return models.ProbeResult{Success: false, Protocol: models.ProtocolSNMP, Extra: map[string]any{}, Error: fmt.Sprintf("non-integer value type: %v", v.Type)}
	}

	val := gosnmp.ToBigInt(v.Value)
	if val == nil {
		return models.ProbeResult{Success: false, Protocol: models.ProtocolSNMP, Extra: map[string]any{}, Error: fmt.Sprintf("non-numeric value: %v", v.Value)}
	}

	lat := latencyMs
	return models.ProbeResult{
		Success:   true,
		LatencyMS: &lat,
		Protocol:  models.ProtocolSNMP,
		Extra: map[string]any{
			"uptime_ticks": val.Int64(),
			"value":        val.Int64(),
		},
	}
}
