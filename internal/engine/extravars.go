package engine

import (
	"regexp"

	"github.com/expr-lang/expr"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// templateVarPattern matches a whole-value "${{ expr }}" extra_vars entry.
var templateVarPattern = regexp.MustCompile(`^\$\{\{\s*(.+?)\s*\}\}$`)

// resolveExtraVars evaluates any "${{ expr }}" string values in vars against
// a read-only snapshot of node metadata (ids, statuses, timings, never
// stdout), so a later node's extra_vars can reference an earlier node's
// outcome. Values that aren't a whole-string template, or that fail to
// compile or run, pass through unchanged: a malformed template is a
// playbook-parameter problem, not a reason to fail node launch outright.
// Caller holds e.mu.
func (e *Engine) resolveExtraVars(vars map[string]any) map[string]any {
	if len(vars) == 0 {
		return vars
	}
	env := e.extraVarsEnvLocked()
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = resolveExtraVar(v, env)
	}
	return out
}

func resolveExtraVar(v any, env map[string]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	m := templateVarPattern.FindStringSubmatch(s)
	if m == nil {
		return v
	}
	program, err := expr.Compile(m[1], expr.Env(env))
	if err != nil {
		return v
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return v
	}
	return result
}

// extraVarsEnvLocked builds the "nodes" map extra_vars templates see: node
// id -> {status, started_at, ended_at}. Caller holds e.mu.
func (e *Engine) extraVarsEnvLocked() map[string]any {
	nodes := make(map[string]any, len(e.wf.AllNodes()))
	for _, n := range e.wf.AllNodes() {
		nodes[n.ID] = nodeMetaEnv(n)
	}
	return map[string]any{"nodes": nodes}
}

func nodeMetaEnv(n *domain.Node) map[string]any {
	m := map[string]any{"status": n.Status.String()}
	if n.StartedAt != nil {
		m["started_at"] = n.StartedAt.Unix()
	}
	if n.EndedAt != nil {
		m["ended_at"] = n.EndedAt.Unix()
	}
	return m
}
