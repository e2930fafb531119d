// Package probes implements the stateless ICMP and SNMP reachability
// drivers of spec.md §4.2: a uniform Driver contract returning ProbeResult,
// with no side effects on engine state so the scheduler's concurrency
// accounting stays accurate around their blocking I/O.
package probes

import (
	"context"
	"time"

	"netwatch/engine/models"
)

// Driver performs one protocol-specific reachability check against an IP.
type Driver interface {
	Protocol() models.Protocol
	Probe(ctx context.Context, ip string, opts Options) models.ProbeResult
}

// Options carries the per-call tunables a Driver needs; unused fields for a
// given protocol are ignored.
type Options struct {
	Count         int
	Timeout       time.Duration
	SNMPCommunity string
	SNMPPort      int
	OID           string
}
