package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// HeartbeatTimeout is the per-iteration queue wait before a heartbeat is
// emitted, per spec.md §4.I / §7.
const HeartbeatTimeout = 15 * time.Second

// Flusher is satisfied by http.ResponseWriter; it is its own interface here
// so WriteLoop doesn't need to import net/http.
type Flusher interface {
	Flush()
}

// WriteLoop is the per-connection SSE writer: it emits a connected
// handshake, then relays queue until ctx is done, emitting a heartbeat
// whenever no message arrives within HeartbeatTimeout, per spec.md §4.I.
func WriteLoop(ctx context.Context, w io.Writer, flusher Flusher, clientID int64, queue <-chan map[string]any) error {
	if err := writeConnected(w, clientID); err != nil {
		return err
	}
	flusher.Flush()

	for {
		timer := time.NewTimer(HeartbeatTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case msg, ok := <-queue:
			timer.Stop()
			if !ok {
				return nil
			}
			if err := writeData(w, msg); err != nil {
				return err
			}
			flusher.Flush()

		case <-timer.C:
			if err := writeHeartbeat(w); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

// WriteReplay emits every entry in msgs as a data frame, in order. Callers
// use this to backfill a reconnecting client's Last-Event-ID gap before
// handing the connection to WriteLoop.
func WriteReplay(w io.Writer, msgs []map[string]any) error {
	for _, msg := range msgs {
		if err := writeData(w, msg); err != nil {
			return err
		}
	}
	return nil
}

func writeConnected(w io.Writer, clientID int64) error {
	payload, err := json.Marshal(map[string]any{
		"client_id": clientID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: connected\ndata: %s\n\n", payload)
	return err
}

func writeHeartbeat(w io.Writer) error {
	payload, err := json.Marshal(map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: heartbeat\ndata: %s\n\n", payload)
	return err
}

func writeData(w io.Writer, msg map[string]any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
