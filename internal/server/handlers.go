package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// Handlers wires gin handler methods to a Server, one method per route.
type Handlers struct {
	srv *Server
}

// NewHandlers returns a Handlers bound to srv.
func NewHandlers(srv *Server) *Handlers {
	return &Handlers{srv: srv}
}

// HandleLoadWorkflow implements load_workflow(path, inventory).
func (h *Handlers) HandleLoadWorkflow(c *gin.Context) {
	var req loadWorkflowRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}
	result, err := h.srv.LoadWorkflow(req.Path, req.Inventory)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, result)
}

// HandleRun implements run(start, end, verify_only).
func (h *Handlers) HandleRun(c *gin.Context) {
	var req runRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}
	err := h.srv.Run(c.Request.Context(), RunOptions{
		Start:      req.Start,
		End:        req.End,
		VerifyOnly: req.VerifyOnly,
		Filter:     req.Filter,
		Skip:       req.Skip,
	})
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleStop implements stop(mode).
func (h *Handlers) HandleStop(c *gin.Context) {
	var req stopRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}
	if err := h.srv.Stop(domain.StopMode(req.Mode)); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, map[string]string{"status": "stopping"})
}

// HandleStatus implements status().
func (h *Handlers) HandleStatus(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondJSON(c, http.StatusOK, map[string]string{"workflow_status": string(domain.WorkflowStatusNoWorkflowLoaded)})
		return
	}
	respondJSON(c, http.StatusOK, eng.Status())
}

// HandleGraph implements graph().
func (h *Handlers) HandleGraph(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondAPIError(c, errNoWorkflowLoaded)
		return
	}
	respondJSON(c, http.StatusOK, eng.Graph())
}

// HandleInputData implements input_data().
func (h *Handlers) HandleInputData(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondAPIError(c, errNoWorkflowLoaded)
		return
	}
	respondJSON(c, http.StatusOK, eng.InputData())
}

// HandleNodeDetails implements node_details(id).
func (h *Handlers) HandleNodeDetails(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondAPIError(c, errNoWorkflowLoaded)
		return
	}
	rec, err := eng.NodeDetails(c.Param("id"))
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rec)
}

// tailStdoutResponse is tail_stdout's (new_content, new_offset) pair.
type tailStdoutResponse struct {
	Content   string `json:"content"`
	NewOffset int64  `json:"new_offset"`
}

// HandleTailStdout implements tail_stdout(id, offset).
func (h *Handlers) HandleTailStdout(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondAPIError(c, errNoWorkflowLoaded)
		return
	}
	offset := getQueryInt64(c, "offset", 0)
	content, newOffset, err := eng.TailStdout(c.Param("id"), offset)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tailStdoutResponse{Content: string(content), NewOffset: newOffset})
}

// HandleRestartNode implements restart_node(id).
func (h *Handlers) HandleRestartNode(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondAPIError(c, errNoWorkflowLoaded)
		return
	}
	var req nodeIDRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}
	if err := eng.RestartNode(req.ID); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, map[string]string{"status": "restarted"})
}

// HandleSkipNode implements skip_node(id).
func (h *Handlers) HandleSkipNode(c *gin.Context) {
	eng := h.srv.Engine()
	if eng == nil {
		respondAPIError(c, errNoWorkflowLoaded)
		return
	}
	var req nodeIDRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}
	if err := eng.SkipNode(req.ID); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, map[string]string{"status": "skipped"})
}

// HandleRequestShutdown implements the one-way request_shutdown().
func (h *Handlers) HandleRequestShutdown(c *gin.Context) {
	h.srv.RequestShutdown()
	c.Status(http.StatusAccepted)
}

// HandleDrawGraph renders the workflow graph for display, supplementing
// the raw-edges graph() RPC with a swimlane-grouped export.
func (h *Handlers) HandleDrawGraph(c *gin.Context) {
	format := c.DefaultQuery("format", "mermaid")
	doc, err := h.srv.DrawGraph(format)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	c.String(http.StatusOK, doc)
}

// HandleHealth is the liveness probe auto-launching clients poll while
// waiting for a freshly forked daemon to come up.
func (h *Handlers) HandleHealth(c *gin.Context) {
	respondJSON(c, http.StatusOK, map[string]any{
		"status":          "ok",
		"workflow_loaded": h.srv.Loaded(),
		"ws_clients":      h.srv.hub.ClientCount(),
	})
}
