// ABOUTME: Version information for the speaker
// ABOUTME: Published in the service record and the control API
package version

const (
	// Version is the release version
	Version = "0.1.0"

	// Product is the model name senders see
	Product = "Sendspin Speaker"

	// Manufacturer identifies the maker
	Manufacturer = "Sendspin"
)

// String returns "Product Version"
func String() string {
	return Product + " " + Version
}
