// ABOUTME: Build identity reported by the CLI, control server and mDNS records
// ABOUTME: Product, manufacturer and semantic version constants
package version

const (
	Version      = "0.3.0"
	Product      = "mixgraph"
	Manufacturer = "Sendspin"
)

// String returns "product/version"
func String() string {
	return Product + "/" + Version
}
