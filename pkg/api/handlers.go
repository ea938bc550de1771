package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tarsy-labs/mlm/pkg/lifecycle"
	"github.com/tarsy-labs/mlm/pkg/llm"
)

func (s *Server) listModels(c *gin.Context) {
	views, err := s.engine.List()
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]modelResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toModelResponse(v))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getModel(c *gin.Context) {
	view, err := s.engine.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toModelResponse(view))
}

func (s *Server) startModel(c *gin.Context) {
	force, _ := strconv.ParseBool(c.Query("force"))

	outcome, err := s.engine.Start(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		writeError(c, err)
		return
	}
	if !outcome.Accepted {
		writeRejection(c, outcome)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) stopModel(c *gin.Context) {
	outcome, err := s.engine.Stop(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !outcome.Accepted {
		writeRejection(c, outcome)
		return
	}
	c.Status(http.StatusAccepted)
}

// writeRejection writes the body spec §6 specifies for a 409 start/stop
// rejection, including available_gb/required_gb only for
// insufficient_memory rejections.
func writeRejection(c *gin.Context, outcome lifecycle.Outcome) {
	status := statusForKind(rejectKind(outcome.Reason))
	body := gin.H{"error": string(outcome.Reason)}
	if outcome.Reason == lifecycle.RejectInsufficientMemory {
		body["available_gb"] = outcome.AvailableGB
		body["required_gb"] = outcome.RequiredGB
	}
	c.JSON(status, body)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) healthHistory(c *gin.Context) {
	samples, err := s.engine.HealthHistory(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, samples)
}

func (s *Server) chatCompletions(c *gin.Context) {
	if s.orchestrator == nil {
		writeError(c, newError(KindInternal, "chat is not configured on this server"))
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, wrapError(KindBadRequest, "invalid request body", err))
		return
	}

	result, err := s.orchestrator.Chat(c.Request.Context(), req.Model, req.Messages, req.Tools)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, chatResponseBody{
		ID:     "chatcmpl-" + req.Model,
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      llm.Message{Role: llm.RoleAssistant, Content: result.FinalContent},
			FinishReason: finishReasonFor(result),
		}},
		SearchResults:  result.SearchResults,
		SandboxOutputs: result.SandboxOutputs,
	})
}
