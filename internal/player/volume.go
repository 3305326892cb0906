// ABOUTME: Software volume for 16-bit PCM
// ABOUTME: Scales samples in place; full volume unmuted is a pass-through
package player

import "github.com/Sendspin/speaker-go/pkg/audio"

// applyVolume scales the 16-bit little-endian samples in data in place
func applyVolume(data []byte, volume int, muted bool) {
	multiplier := getVolumeMultiplier(volume, muted)
	if multiplier == 1.0 {
		return
	}

	samples := len(data) / 2
	for i := 0; i < samples; i++ {
		audio.PutInt16At(data, i, int16(float64(audio.Int16At(data, i))*multiplier))
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}
