// ABOUTME: mDNS browsing for advertised speakers
// ABOUTME: Used by senders to find a speaker on the local network
package discovery

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/mdns"
)

// Speaker describes a discovered speaker
type Speaker struct {
	Name string
	Host string
	Port int
	TXT  map[string]string
}

// Browse queries for serviceType for up to timeout and returns what answered
func Browse(ctx context.Context, serviceType string, timeout time.Duration) ([]Speaker, error) {
	if serviceType == "" {
		serviceType = DefaultServiceType
	}

	entries := make(chan *mdns.ServiceEntry, 10)
	results := make(chan []Speaker, 1)

	go func() {
		var found []Speaker
		seen := make(map[string]bool)
		for entry := range entries {
			if entry.AddrV4 == nil || seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true

			speaker := Speaker{
				Name: entry.Name,
				Host: entry.AddrV4.String(),
				Port: entry.Port,
				TXT:  ParseTXT(entry.InfoFields),
			}
			log.Printf("Discovered speaker: %s at %s:%d", speaker.Name, speaker.Host, speaker.Port)
			found = append(found, speaker)
		}
		results <- found
	}()

	queryErr := make(chan error, 1)
	go func() {
		params := mdns.DefaultParams(serviceType)
		params.Timeout = timeout
		params.Entries = entries

		err := mdns.Query(params)
		close(entries)
		queryErr <- err
	}()

	select {
	case err := <-queryErr:
		if err != nil {
			return nil, err
		}
		return <-results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
