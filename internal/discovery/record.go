// ABOUTME: Instance names and TXT records for the advertised service
// ABOUTME: Maps device names to mDNS-safe labels and describes the fixed audio profile
package discovery

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Sendspin/speaker-go/pkg/audio"
)

// MaxInstanceName is the DNS label limit in bytes
const MaxInstanceName = 63

// FallbackName is used when nothing of the device name survives sanitizing
const FallbackName = "speaker"

// SanitizeName turns a human-readable device name into an instance name with
// no whitespace and only letters, digits, '-' and '_'
func SanitizeName(name string) string {
	var b strings.Builder
	for i, field := range strings.Fields(name) {
		if i > 0 {
			b.WriteByte('-')
		}
		for _, r := range field {
			if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
				b.WriteRune(r)
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > MaxInstanceName {
		out = strings.TrimRight(out[:MaxInstanceName], "-")
	}
	if out == "" {
		return FallbackName
	}
	return out
}

// TXTRecords returns the key=value records describing svc
func TXTRecords(svc Service) []string {
	model := svc.Model
	if model == "" {
		model = "Speaker"
	}
	version := svc.Version
	if version == "" {
		version = "0"
	}

	return []string{
		"txtvers=1",
		"ch=" + strconv.Itoa(audio.Channels),
		"cn=0,1",
		"et=0,1",
		"md=0,1,2",
		"pw=" + strconv.FormatBool(svc.Protected),
		"sr=" + strconv.Itoa(audio.SampleRate),
		"ss=" + strconv.Itoa(audio.BitDepth),
		"tp=UDP",
		"vn=3",
		"vs=" + version,
		"am=" + model,
		"sf=0x4",
	}
}

// ParseTXT splits key=value records into a map
func ParseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, _ := strings.Cut(f, "=")
		out[k] = v
	}
	return out
}
