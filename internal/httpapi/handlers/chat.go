package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgp-travel/tourchat/internal/common"
	"github.com/mgp-travel/tourchat/internal/httpapi/middleware"
	"github.com/mgp-travel/tourchat/internal/stream"
)

const defaultSessionID = "default"

type chatReq struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (r *chatReq) normalize() bool {
	if r.SessionID == "" {
		r.SessionID = defaultSessionID
	}
	return strings.TrimSpace(r.Message) != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Chat runs one turn without streaming and returns the whole reply.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.normalize() {
		common.Fail(c, http.StatusBadRequest, 10001, "empty message")
		return
	}

	hd := h.Sessions.Resolve(req.SessionID)

	reply, err := hd.Chat(c.Request.Context(), req.Message)
	if err != nil {
		h.Log.Error("chat failed", "rid", middleware.RequestIDFrom(c), "session", req.SessionID, "err", err)
		_ = h.Usage.IncrErrors(c.Request.Context())
		common.Fail(c, http.StatusInternalServerError, 50001, err.Error())
		return
	}

	h.finishTurn(req.SessionID, req.Message, reply, 0)
	common.OK(c, gin.H{"response": reply})
}

// countingWriter forwards events and keeps the turn outcome so the handler
// can archive the reply and bump usage counters after the stream ends.
type countingWriter struct {
	inner  stream.EventWriter
	tokens int64
	done   *stream.Event
	failed bool
}

func (w *countingWriter) WriteEvent(ev stream.Event) error {
	switch ev.Type {
	case stream.EventToken:
		w.tokens++
	case stream.EventDone:
		cp := ev
		w.done = &cp
	case stream.EventError:
		w.failed = true
	}
	return w.inner.WriteEvent(ev)
}

// ChatStream runs one turn and relays it as a server-sent event stream:
// token frames as they are produced, ping frames during silences, one
// terminal done or error frame.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.normalize() {
		common.Fail(c, http.StatusBadRequest, 10001, "empty message")
		return
	}

	rid := middleware.RequestIDFrom(c)
	hd := h.Sessions.Resolve(req.SessionID)

	h.Log.Info("stream turn start",
		"rid", rid,
		"session", truncate(req.SessionID, 8),
		"history_len", hd.HistoryLen(),
		"message", truncate(req.Message, 100),
	)

	stream.SSEHeaders(c.Writer.Header())
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	turn := h.Bridge.RunTurn(ctx, hd, req.Message)

	w := &countingWriter{inner: stream.NewSSEWriter(c.Writer)}
	if err := h.Bridge.Serve(ctx, turn, w); err != nil {
		// client went away; the producer unwinds on its own
		h.Log.Warn("stream aborted", "rid", rid, "session", req.SessionID, "err", err)
		return
	}

	switch {
	case w.done != nil:
		h.Log.Info("stream turn done",
			"rid", rid,
			"session", truncate(req.SessionID, 8),
			"tokens", w.tokens,
			"reply_len", len(w.done.Content),
		)
		h.finishTurn(req.SessionID, req.Message, w.done.Content, w.tokens)
	case w.failed:
		h.Log.Error("stream turn failed", "rid", rid, "session", req.SessionID)
		_ = h.Usage.IncrErrors(context.Background())
	}
}

// finishTurn archives the finished turn and bumps counters. Best-effort on a
// fresh context: the reply already reached the client, a failing archive or
// Redis must not affect the response.
func (h *Handler) finishTurn(sessionID, message, reply string, tokens int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.ChatSvc.ArchiveTurn(ctx, sessionID, message, reply); err != nil {
		h.Log.Warn("archive turn failed", "session", sessionID, "err", err)
	}
	if err := h.Usage.IncrTurns(ctx); err != nil {
		h.Log.Warn("usage incr failed", "err", err)
	}
	if err := h.Usage.AddTokens(ctx, tokens); err != nil {
		h.Log.Warn("usage tokens failed", "err", err)
	}
}

type resetReq struct {
	SessionID string `json:"session_id"`
}

// Reset clears a session's history. Succeeds whether or not the session
// existed.
func (h *Handler) Reset(c *gin.Context) {
	var req resetReq
	_ = c.ShouldBindJSON(&req) // allow empty body
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	h.Sessions.Reset(req.SessionID)
	h.Log.Info("session reset", "rid", middleware.RequestIDFrom(c), "session", truncate(req.SessionID, 8))
	common.OK(c, gin.H{"status": "ok"})
}

// History lists archived records for a session, newest first.
func (h *Handler) History(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = defaultSessionID
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	recs, err := h.ChatSvc.ListRecords(c.Request.Context(), sessionID, limit, beforeID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list history")
		return
	}

	var nextBeforeID uint64
	if len(recs) > 0 {
		nextBeforeID = recs[len(recs)-1].ID
	}

	common.OK(c, gin.H{
		"records":        recs,
		"next_before_id": nextBeforeID,
	})
}
