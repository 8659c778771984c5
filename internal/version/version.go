// ABOUTME: Version information for the harness
// ABOUTME: Reported by --version and sent as the HTTP user agent
package version

const (
	// Version is the harness release
	Version = "0.3.0"
	// Product is the program name
	Product = "aptest"
	// Manufacturer is the publisher
	Manufacturer = "Resonate"
)

// UserAgent identifies the harness to HTTP and WebSocket servers
func UserAgent() string {
	return Product + "/" + Version
}
