// ABOUTME: Audio output package for playing PCM streams
// ABOUTME: Provides Device/Stream interfaces with oto and null implementations
// Package output provides audio playback devices.
//
// A [Device] opens a [Stream] for a PCM format. Streams accept raw
// little-endian PCM bytes and block while the device is busy, which paces
// the writer at the playback rate.
//
// Example:
//
//	dev := output.NewOto()
//	stream, err := dev.Open(audio.Profile, output.LowLatency)
//	n, err := stream.Write(pcm)
//	err = stream.Close()
package output
