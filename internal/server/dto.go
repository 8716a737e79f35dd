package server

// loadWorkflowRequest is the payload for load_workflow(path, inventory).
type loadWorkflowRequest struct {
	Path      string `json:"path" binding:"required"`
	Inventory string `json:"inventory"`
}

// runRequest is the payload for run(start, end, verify_only), supplemented
// with the filter/skip pruning sets so a client can request them in one
// call instead of a separate RPC.
type runRequest struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	VerifyOnly bool     `json:"verify_only"`
	Filter     []string `json:"filter"`
	Skip       []string `json:"skip"`
}

// stopRequest is the payload for stop(mode).
type stopRequest struct {
	Mode string `json:"mode" binding:"required,oneof=graceful hard"`
}

// nodeIDRequest is shared by restart_node(id) and skip_node(id).
type nodeIDRequest struct {
	ID string `json:"id" binding:"required"`
}
