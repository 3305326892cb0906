// ABOUTME: Entry point for the stream sender
// ABOUTME: Finds a speaker over mDNS and streams paced PCM frames to its bridge
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sendspin/speaker-go/internal/bridge"
	"github.com/Sendspin/speaker-go/internal/discovery"
	"github.com/Sendspin/speaker-go/pkg/audio"
	"github.com/gorilla/websocket"
)

var (
	addr     = flag.String("addr", "", "Speaker address host:port (default: discover via mDNS)")
	service  = flag.String("service", discovery.DefaultServiceType, "mDNS service type to browse")
	timeout  = flag.Duration("timeout", 3*time.Second, "mDNS browse timeout")
	file     = flag.String("file", "", "Audio file to send (MP3, FLAC). If not specified, sends a test tone")
	name     = flag.String("name", "", "Sender name (default: hostname)")
	duration = flag.Duration("duration", 0, "Stop after this long (0 streams until the source ends)")
)

const (
	frameDuration = 10 * time.Millisecond
	writeTimeout  = time.Second
	readyTimeout  = 5 * time.Second
)

var errSpeakerClosed = errors.New("speaker closed the stream")

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("speaker-send: %v", err)
	}
}

func run(ctx context.Context) error {
	src, err := openSource(*file)
	if err != nil {
		return err
	}
	defer src.Close()

	target := *addr
	if target == "" {
		target, err = discover(ctx, *service, *timeout)
		if err != nil {
			return err
		}
	}

	u := url.URL{Scheme: "ws", Host: target, Path: bridge.StreamPath}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	if err := handshake(conn, senderName()); err != nil {
		return err
	}

	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	err = stream(ctx, conn, src)
	if errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeTimeout))
	return err
}

// discover returns the address of the first speaker that answers
func discover(ctx context.Context, serviceType string, timeout time.Duration) (string, error) {
	log.Printf("Browsing for %s speakers...", serviceType)

	speakers, err := discovery.Browse(ctx, serviceType, timeout)
	if err != nil {
		return "", fmt.Errorf("browse: %w", err)
	}
	if len(speakers) == 0 {
		return "", fmt.Errorf("no speakers found within %v", timeout)
	}

	s := speakers[0]
	if s.TXT["pw"] == "true" {
		log.Printf("%s is password protected; join its hotspot before streaming", s.Name)
	}
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), nil
}

// handshake sends the hello and waits for the speaker to accept the format
func handshake(conn *websocket.Conn, sender string) error {
	if err := conn.WriteJSON(bridge.Hello{Name: sender, Format: audio.Profile}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(readyTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var ready bridge.Ready
	if err := conn.ReadJSON(&ready); err != nil {
		return fmt.Errorf("wait for ready: %w", err)
	}
	if ready.Status != "ready" || !ready.Format.Compatible(audio.Profile) {
		return fmt.Errorf("speaker refused stream: status %q, format %s", ready.Status, ready.Format)
	}

	log.Printf("Speaker ready (%s)", ready.Format)
	return nil
}

// stream sends one frame per tick until the source ends or ctx is done
func stream(ctx context.Context, conn *websocket.Conn, src io.Reader) error {
	// Reading is required to observe the speaker's close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	buf := make([]byte, audio.Profile.BytesFor(frameDuration))
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("Sent %d frames", sent)
			return ctx.Err()
		case <-closed:
			return errSpeakerClosed
		case <-ticker.C:
		}

		n, err := io.ReadFull(src, buf)
		n = wholeFrames(n)
		if n > 0 {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return fmt.Errorf("send frame: %w", werr)
			}
			sent++
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				log.Printf("Source finished after %d frames", sent)
				return nil
			}
			return fmt.Errorf("read source: %w", err)
		}
	}
}

// wholeFrames rounds n down to whole sample frames
func wholeFrames(n int) int {
	size := audio.Profile.FrameSize()
	return n - n%size
}

func senderName() string {
	if *name != "" {
		return *name
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "speaker-send"
	}
	return hostname
}
