// Package sim provides the resource manager of a sliced SDN ring and the
// discrete-event simulation that drives it.
//
// # Reading Guide
//
// Start with these files to understand the resource manager:
//   - ledger.go: per link direction bandwidth accounting (quota, committed, extra, usage)
//   - reservation.go: all-or-nothing reservation transactions across both interfaces
//   - routing.go: admission decisions, path selection and the bearer routing records
//   - arbitrator.go: periodic extra bandwidth sharing and slice meter programming
//
// The event loop lives in simulator.go and event.go. Ring geometry is in
// ring.go, the link store in link.go.
//
// # Architecture
//
// The sim package defines the core types and interfaces; supporting
// implementations live in sub-packages:
//   - sim/registry/: memdb-backed BearerRegistry
//   - sim/metering/: MeterProgrammer implementations on go-events sinks
//   - sim/controlplane/: live runtime serializing requests and ticks on one goroutine
//   - sim/workload/: bearer workload specs and generation
//   - sim/trace/: decision trace recording
//
// # Key Interfaces
//
//   - LinkLedgerStore: locate the ledger of a link direction
//   - BearerRegistry: locate bearer metadata by id
//   - RoutingStrategy: ordered alternative paths tried when the defaults block
//   - MeterProgrammer: outbound slice meter commands toward the switches
package sim
