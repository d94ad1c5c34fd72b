package http

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"raise-service/internal/app"
	"raise-service/internal/domain"
	"raise-service/internal/ethics"
	"raise-service/internal/logging"
)

// WSHandler walks a client through the decision graph one question at a time.
// With ?session= every answer is recorded against that traversal session and
// the session is completed when a terminal is reached.
type WSHandler struct {
	guidance *app.GuidanceService
	research *app.ResearchService
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(guidance *app.GuidanceService, research *app.ResearchService, logger *log.Logger) *WSHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WSHandler{
		guidance: guidance,
		research: research,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Node  string       `json:"node"`
	Value domain.Value `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// walk is the per-connection state. It is only touched by the read loop.
type walk struct {
	current string
	answers domain.Answers
	done    bool
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionCode := r.URL.Query().Get("session")
	if sessionCode != "" {
		if h.research == nil {
			http.Error(w, "session recording is not available", http.StatusServiceUnavailable)
			return
		}
		sess, err := h.research.GetSession(r.Context(), sessionCode)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if sess.IsComplete {
			writeError(w, r, h.logger, domain.ErrSessionComplete)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "session", sessionCode, "err", err)
				return
			}
		}
	}()

	// push gives up once the writer has stopped so a dead connection cannot
	// block the read loop.
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	state := &walk{current: h.guidance.Graph().StartKey(), answers: domain.Answers{}}
	push(outboundMessage[any]{Type: "node", Payload: h.guidance.Start()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("invalid answer payload"))
				continue
			}
			push(h.answer(r, sessionCode, state, payload))
		case "restart":
			if sessionCode != "" {
				push(errorMessage("a recorded session cannot be restarted"))
				continue
			}
			state = &walk{current: h.guidance.Graph().StartKey(), answers: domain.Answers{}}
			push(outboundMessage[any]{Type: "node", Payload: h.guidance.Start()})
		default:
			push(errorMessage("unsupported message type"))
		}
	}

	close(send)
	<-writerDone
}

// answer advances the walk by one question and returns the reply.
func (h *WSHandler) answer(r *http.Request, sessionCode string, state *walk, p answerPayload) outboundMessage[any] {
	switch {
	case state.done:
		return errorMessage("walk already reached a result")
	case p.Node != state.current:
		return errorMessage("expected an answer for " + state.current)
	case p.Value.IsZero():
		return errorMessage("answer value is required")
	}

	next, kind, ok, err := h.guidance.Next(p.Node, p.Value)
	if err != nil {
		return errorMessage(err.Error())
	}
	if !ok {
		return errorMessage("answer does not match any option")
	}

	if sessionCode != "" {
		if _, err := h.research.RecordResponse(r.Context(), sessionCode, p.Node, p.Value, ""); err != nil {
			return h.failure(sessionCode, err)
		}
	}
	state.answers[p.Node] = p.Value
	state.current = next

	if kind == ethics.KindQuestion {
		q, err := h.guidance.Graph().Node(next)
		if err != nil {
			return h.failure(sessionCode, err)
		}
		return outboundMessage[any]{Type: "node", Payload: q}
	}

	state.done = true
	if sessionCode != "" {
		if _, err := h.research.CompleteSession(r.Context(), sessionCode, next); err != nil {
			return h.failure(sessionCode, err)
		}
	}
	return outboundMessage[any]{Type: "result", Payload: h.guidance.Evaluate(state.answers)}
}

func (h *WSHandler) failure(sessionCode string, err error) outboundMessage[any] {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error("ws walk failed", "session", sessionCode, "err", err)
		return errorMessage("internal error")
	}
	return errorMessage(err.Error())
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
