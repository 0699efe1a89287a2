// ABOUTME: Resource provider package
// ABOUTME: Supplies encoded audio by name from disk, memory or HTTP
// Package resources implements the byte-stream side of the engine: a
// Provider maps a logical name to an encoded stream or reports it absent.
//
// Example:
//
//	provider := resources.Chain{
//	    resources.NewDir("assets"),
//	    httpProvider,
//	}
//	rc, ok := provider.GetStream("sfx/hit")
package resources
