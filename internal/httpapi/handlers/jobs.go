package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/suPer8Hu/tripgen/internal/common"
	"github.com/suPer8Hu/tripgen/internal/itinerary"
	"github.com/suPer8Hu/tripgen/internal/jobs"
)

type submitResp struct {
	Key     string          `json:"key"`
	Status  jobs.Status     `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message"`
}

type resultResp struct {
	Key    string          `json:"key"`
	Status jobs.Status     `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
}

var submitMessages = map[jobs.Status]string{
	jobs.StatusQueued:     "Job queued",
	jobs.StatusProcessing: "Job already processing",
	jobs.StatusCompleted:  "Result retrieved from cache",
}

func (h *Handler) SubmitJob(c *gin.Context) {
	var req itinerary.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidPayload, err.Error())
		return
	}

	out, err := h.Gateway.Submit(c.Request.Context(), &req)
	if err != nil {
		failJobs(c, "submit", err)
		return
	}

	resp := submitResp{Key: out.Handle, Status: out.Status, Message: submitMessages[out.Status]}
	if out.Record != nil {
		resp.Result = out.Record.Result
	}
	common.OK(c, resp)
}

func (h *Handler) GetResult(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeMissingKey, "key is required")
		return
	}

	out, err := h.Lookup.Poll(c.Request.Context(), key)
	if err != nil {
		failJobs(c, "poll", err)
		return
	}
	if out.Status == jobs.StatusNotFound {
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "result not found")
		return
	}

	resp := resultResp{Key: out.Handle, Status: out.Status}
	if out.Record != nil {
		resp.Result = out.Record.Result
	}
	common.OK(c, resp)
}

func failJobs(c *gin.Context, op string, err error) {
	slogcontext.FromCtx(c.Request.Context()).Error(op+" failed", "err", err)
	switch {
	case errors.Is(err, jobs.ErrInvalidPayload):
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidPayload, "invalid payload")
	case errors.Is(err, jobs.ErrEnqueue):
		common.Fail(c, http.StatusInternalServerError, common.CodeEnqueue, "failed to enqueue job")
	case errors.Is(err, jobs.ErrStore):
		common.Fail(c, http.StatusInternalServerError, common.CodeStore, "store unavailable")
	default:
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "internal server error")
	}
}
