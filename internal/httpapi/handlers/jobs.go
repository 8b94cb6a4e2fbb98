package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mgp-travel/tourchat/internal/chat"
	"github.com/mgp-travel/tourchat/internal/common"
	"github.com/mgp-travel/tourchat/internal/httpapi/middleware"
)

// ChatAsync enqueues a turn for the background worker instead of answering
// inline. The worker builds context from the transcript archive, so async
// turns see archived history rather than the server's in-memory handlers.
func (h *Handler) ChatAsync(c *gin.Context) {
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async chat is disabled")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.normalize() {
		common.Fail(c, http.StatusBadRequest, 10001, "empty message")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &chat.Job{
		ID:        jobID,
		SessionID: req.SessionID,
		Prompt:    req.Message,
		Status:    chat.JobQueued,
	}
	if err := h.ChatSvc.CreateJob(c.Request.Context(), j); err != nil {
		h.Log.Error("create job failed", "rid", middleware.RequestIDFrom(c), "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
		h.Log.Error("publish job failed", "rid", middleware.RequestIDFrom(c), "job_id", j.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"job": j})
}
