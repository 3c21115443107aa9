// Package llm defines the backend-agnostic contract shared by every
// inference backend adapter.
//
// This package holds the unified request/response/status shapes, the
// Backend interface that all adapters implement, and the tagged Error
// type used for every expected failure. Adapter implementations live in
// separate packages under /pkg/providers/ to keep wire-format details
// out of the contract and avoid import cycles.
package llm
