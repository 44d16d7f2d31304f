package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/aristath/vqe/internal/modules/cost"
	"github.com/aristath/vqe/internal/modules/runs"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamBuffer       = 256
)

// Frame types sent on the run stream.
const (
	FrameEvaluation = "evaluation"
	FrameRun        = "run"
	FrameError      = "error"
)

// StreamFrame is one message on the run stream. Adaptive runs interleave
// the records of their candidates; Candidate tells them apart.
type StreamFrame struct {
	Type      string                 `json:"type"`
	Candidate string                 `json:"candidate,omitempty"`
	Record    *cost.EvaluationRecord `json:"record,omitempty"`
	Run       *runs.Run              `json:"run,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// HandleStream handles GET /api/runs/stream. The client sends one run
// request as a text message; the server answers with an evaluation frame
// per recorded cost call, then a run frame (or an error frame) and a normal
// close.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	readCtx, cancel := context.WithTimeout(r.Context(), streamReadTimeout)
	msgType, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		h.log.Debug().Err(err).Msg("No run request received")
		return
	}
	if msgType != websocket.MessageText {
		conn.Close(websocket.StatusUnsupportedData, "expected a JSON text message")
		return
	}

	var req runs.Request
	if err := json.Unmarshal(data, &req); err != nil {
		h.writeFrame(r.Context(), conn, StreamFrame{Type: FrameError, Error: fmt.Sprintf("invalid request: %v", err)})
		conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}

	// CloseRead keeps control frames flowing and cancels the run if the
	// client goes away.
	ctx := conn.CloseRead(r.Context())

	records := make(chan cost.EvaluationRecord, streamBuffer)
	written := make(chan error, 1)
	go func() {
		var failed error
		for rec := range records {
			if failed != nil {
				continue
			}
			failed = h.writeFrame(ctx, conn, StreamFrame{Type: FrameEvaluation, Candidate: rec.Source, Record: &rec})
		}
		written <- failed
	}()

	observer := func(rec cost.EvaluationRecord) {
		select {
		case records <- rec:
		case <-ctx.Done():
		}
	}

	run, runErr := h.service.Run(ctx, req, observer)
	close(records)
	if err := <-written; err != nil {
		h.log.Debug().Err(err).Msg("Stream client went away")
		return
	}

	final := StreamFrame{Type: FrameRun, Run: run}
	if runErr != nil {
		final = StreamFrame{Type: FrameError, Error: runErr.Error()}
	}
	if err := h.writeFrame(ctx, conn, final); err != nil {
		h.log.Debug().Err(err).Msg("Failed to send final frame")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, frame StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
