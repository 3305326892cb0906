// ABOUTME: Bridge used when no stream decoder exists on the host
// ABOUTME: Starting it always fails with ErrUnavailable
package bridge

// Unavailable is the bridge for hosts without a decoder. The session keeps
// running without audio.
type Unavailable struct{}

// Start always fails with ErrUnavailable
func (Unavailable) Start(Config, FrameFunc) (Handle, error) {
	return Handle{}, ErrUnavailable
}

// Stop is a no-op
func (Unavailable) Stop(Handle) error {
	return nil
}
