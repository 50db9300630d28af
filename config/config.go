// Package config holds the tunables shared by every sparsecoll call:
// the RMA marker-mode default, the request pool's first-allocation
// capacity, and which algorithm AlgorithmDefault resolves to. The reserved
// tag values are constants in sparsecoll, not settings here.
//
// It is a single process-wide holder, swapped atomically and read with a
// cheap Get() rather than threaded through every call.
package config

import (
	"go.uber.org/atomic"
)

// DefaultAlgorithmName names what AlgorithmDefault resolves to. It is a
// string rather than sparsecoll.Algorithm so this package can sit below
// sparsecoll in the import graph (xcomm, which sparsecoll itself depends
// on, also reads this config) instead of importing it back.
type DefaultAlgorithmName string

const (
	AlgoRMA          DefaultAlgorithmName = "rma"
	AlgoPersonalized DefaultAlgorithmName = "personalized"
	AlgoNonblocking  DefaultAlgorithmName = "nonblocking"
)

// Config is the immutable snapshot returned by Get. Callers that want a
// different value call Set with a new *Config; they never mutate one in
// place, since a Config may be shared by goroutines that fetched it before
// the swap.
type Config struct {
	// DefaultAlgorithm is what AlgorithmDefault resolves to.
	DefaultAlgorithm DefaultAlgorithmName

	// RMAMarkerByDefault, when true, makes sparsecoll.AlltoallCRS pass
	// WithPresenceMarker() whenever it dispatches to the RMA algorithm.
	// Direct calls to AlltoallCRSRMA do not read this setting.
	RMAMarkerByDefault bool

	// RequestPoolMinCap is the smallest capacity EnsureRequests grows to
	// on its very first allocation.
	RequestPoolMinCap int
}

var global atomic.Pointer[Config]

func init() {
	global.Store(&Config{
		DefaultAlgorithm:   AlgoRMA,
		RMAMarkerByDefault: false,
		RequestPoolMinCap:  1,
	})
}

// Get returns the current process-wide config.
func Get() *Config { return global.Load() }

// Set installs a new process-wide config, replacing whatever Get would
// have returned before this call.
func Set(c *Config) { global.Store(c) }
