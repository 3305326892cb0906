// ABOUTME: Audio fundamentals package providing the fixed PCM profile and frame type
// ABOUTME: Defines Format, Frame and the 44.1kHz/stereo/16-bit profile constants
// Package audio provides the audio types shared by the speaker and its senders.
//
// The speaker renders a single fixed PCM profile:
//   - 44100 Hz sample rate
//   - 2 channels (interleaved stereo)
//   - 16-bit signed little-endian samples
//
// Decoder bridges use [Profile] to negotiate compatible parameters upstream,
// and every [Frame] is interpreted under it.
//
// Example:
//
//	frame := audio.Frame{Data: pcm}
//	if err := frame.Validate(audio.Profile); err != nil {
//	    return err
//	}
//	d := audio.Profile.Duration(frame.Len())
package audio
