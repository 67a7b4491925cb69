package rtlgen

import (
	"sort"

	"github.com/raymyers/bxcc/pkg/rtl"
)

// ComputeSchedule linearizes a Callable's label-addressed body into the
// order the translator (pkg/asmgen) must emit it in: a depth-first walk
// from enter following each instruction's Successors() in order, so a
// branch's taken target is scheduled directly after the branch whenever
// reachable that way, matching CompCert-style "fall through the common
// case" layouts. Any label the walk never reaches (the lowerer leaves
// such labels behind, e.g. the fresh label after a return statement or
// the false edge of a literal `true` condition) is appended afterward in
// label-id order so the result is
// always a full permutation of body's keys, per spec.md §3's invariant.
func ComputeSchedule(enter rtl.Label, body map[rtl.Label]rtl.Instruction) []rtl.Label {
	visited := make(map[rtl.Label]bool, len(body))
	order := make([]rtl.Label, 0, len(body))

	var visit func(l rtl.Label)
	visit = func(l rtl.Label) {
		if visited[l] {
			return
		}
		visited[l] = true
		order = append(order, l)
		instr, ok := body[l]
		if !ok {
			return
		}
		for _, succ := range instr.Successors() {
			visit(succ)
		}
	}
	visit(enter)

	if len(order) < len(body) {
		var remaining []rtl.Label
		for l := range body {
			if !visited[l] {
				remaining = append(remaining, l)
			}
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })
		order = append(order, remaining...)
	}
	return order
}
