package state

import "strings"

// Sanitize normalizes a Delta before it is applied: it drops empty thought
// strings, trims whitespace, and stamps the originating agent name. This is
// the Go equivalent of the Python source's `state.sanitize_update(update,
// agent)` (spec.md §3 invariant d: "every write passes through a sanitizer
// that drops unknown keys, coerces types, and records the originating agent
// name"). Because Go deltas are statically typed there are no unknown keys
// to drop; sanitization instead focuses on value normalization.
func Sanitize(agent string, d Delta) Delta {
	d.Agent = agent

	if len(d.AgentsThoughts) > 0 {
		thoughts := make([]string, 0, len(d.AgentsThoughts))
		for _, t := range d.AgentsThoughts {
			t = strings.TrimSpace(t)
			if t != "" {
				thoughts = append(thoughts, t)
			}
		}
		d.AgentsThoughts = thoughts
	}

	if d.SubgoalPlan != nil {
		enforceAtMostOneRunning(*d.SubgoalPlan)
	}

	return d
}

// enforceAtMostOneRunning demotes every Running subgoal after the first to
// NotStarted, defensively enforcing invariant (b) even if an agent's
// decision logic produced an inconsistent plan.
func enforceAtMostOneRunning(plan Plan) {
	seen := false
	for i := range plan {
		if plan[i].Status != SubgoalRunning {
			continue
		}
		if seen {
			plan[i].Status = SubgoalNotStarted
		}
		seen = true
	}
}
