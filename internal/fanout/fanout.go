// Package fanout implements the shared tail-loop behind both the SSE
// (/v1/jobs/:id/events) and NDJSON (/v1/run.ndjson) transports: poll the
// event log for a job, write each new event as it appears, and close the
// stream on a terminal event, client disconnect, or hard ceiling.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/registry"
)

const (
	pollInterval  = 500 * time.Millisecond
	maxEvents     = 1000
	heartbeatTick = 15 * time.Second
	hardCeiling   = 5 * time.Minute

	// finalStatusRetries/Delay tolerate the brief window between a
	// processor's terminal event (answer.complete/error) and the worker's
	// following MarkDone/MarkError status-transition commit.
	finalStatusRetries = 5
	finalStatusDelay   = 50 * time.Millisecond
)

// Frame is one event-stream payload, framed by the caller (SSE or NDJSON).
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WriteFunc frames and writes one event to the wire, flushing immediately.
// SSE and NDJSON transports each supply their own framing.
type WriteFunc func(frame Frame) error

// Tail polls the registry for new events on jobID and writes each one via
// write, until a terminal event type is seen, the context is cancelled
// (client disconnect), or the hard ceiling elapses -- whichever comes
// first. It returns the terminal reason as an error-free string for
// logging; errors are returned only for write failures.
func Tail(ctx context.Context, reg *registry.Registry, jobID uuid.UUID, write WriteFunc) (string, error) {
	deadline := time.Now().Add(hardCeiling)
	heartbeat := time.NewTicker(heartbeatTick)
	defer heartbeat.Stop()

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	var lastID int64

	for {
		if time.Now().After(deadline) {
			_ = write(Frame{Type: domain.EventTimeout})
			return "hard_ceiling", nil
		}

		select {
		case <-ctx.Done():
			return "disconnect", nil

		case <-heartbeat.C:
			if err := write(Frame{Type: domain.EventHeartbeat}); err != nil {
				return "", fmt.Errorf("fanout: write heartbeat: %w", err)
			}

		case <-poll.C:
			events, err := reg.EventsSince(ctx, jobID, lastID, maxEvents)
			if err != nil {
				_ = write(Frame{Type: domain.EventError, Data: map[string]interface{}{"error": err.Error()}})
				return "poll_error", nil
			}
			for _, ev := range events {
				var data interface{}
				if len(ev.Data) > 0 {
					if err := json.Unmarshal(ev.Data, &data); err != nil {
						data = string(ev.Data)
					}
				}
				if err := write(Frame{Type: ev.Type, Data: data}); err != nil {
					return "", fmt.Errorf("fanout: write event: %w", err)
				}
				lastID = ev.ID

				if isTerminal(ev.Type) {
					if err := write(closingFrame(resolveFinalStatus(ctx, reg, jobID, ev.Type))); err != nil {
						return "", fmt.Errorf("fanout: write closing frame: %w", err)
					}
					return ev.Type, nil
				}
			}
		}
	}
}

func isTerminal(eventType string) bool {
	switch eventType {
	case domain.EventAnswerComplete, domain.EventComplete, domain.EventError:
		return true
	default:
		return false
	}
}

// resolveFinalStatus re-reads the job after a terminal event so the closing
// frame carries the job's actual final status rather than just the event
// type that triggered it -- the worker's MarkDone/MarkError call can commit
// a moment after the processor's own terminal event is emitted, so this
// retries briefly before falling back to inferring status from eventType.
func resolveFinalStatus(ctx context.Context, reg *registry.Registry, jobID uuid.UUID, eventType string) (domain.JobStatus, *string) {
	for attempt := 0; attempt < finalStatusRetries; attempt++ {
		job, err := reg.GetJob(ctx, jobID)
		if err == nil && job.Status.Terminal() {
			return job.Status, job.Error
		}
		if attempt < finalStatusRetries-1 {
			timer := time.NewTimer(finalStatusDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return statusFromEventType(eventType), nil
			}
		}
	}
	return statusFromEventType(eventType), nil
}

func statusFromEventType(eventType string) domain.JobStatus {
	if eventType == domain.EventError {
		return domain.JobStatusError
	}
	return domain.JobStatusDone
}

// closingFrame builds the final frame a tail writes before ending the
// response: `complete` with the job's final status, or `error` with its
// message.
func closingFrame(status domain.JobStatus, errMsg *string) Frame {
	if status == domain.JobStatusError {
		data := map[string]interface{}{"status": string(status)}
		if errMsg != nil {
			data["error"] = *errMsg
		}
		return Frame{Type: domain.EventError, Data: data}
	}
	return Frame{Type: domain.EventComplete, Data: map[string]interface{}{"status": string(status)}}
}

// WriteSSE returns a WriteFunc that frames events per the SSE wire format
// (`event: <type>\ndata: <json>\n\n`) and flushes after every write. A
// heartbeat frame is written as a bare `:keepalive` comment line instead,
// since it carries no payload and a typed event would make proxies treat it
// as a real message.
func WriteSSE(w io.Writer, flush func()) WriteFunc {
	return func(frame Frame) error {
		var err error
		if frame.Type == domain.EventHeartbeat {
			_, err = fmt.Fprint(w, ":keepalive\n\n")
		} else {
			var payload []byte
			payload, err = json.Marshal(frame)
			if err != nil {
				return fmt.Errorf("fanout: marshal sse frame: %w", err)
			}
			_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Type, payload)
		}
		if err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}
}

// WriteNDJSON returns a WriteFunc that frames events as newline-delimited
// JSON and flushes after every write.
func WriteNDJSON(w io.Writer, flush func()) WriteFunc {
	return func(frame Frame) error {
		enc := json.NewEncoder(w)
		if err := enc.Encode(frame); err != nil {
			return fmt.Errorf("fanout: marshal ndjson frame: %w", err)
		}
		if flush != nil {
			flush()
		}
		return nil
	}
}
