package cpm

import (
	"fmt"
	"math"
	"sort"

	"github.com/joshharrison/shotloom/internal/graph"
)

// Analyze performs critical path method analysis on a task graph. Node
// durations are working seconds; milestones and unestimated nodes take zero.
func Analyze(g *graph.TaskGraph) (*CPMResult, error) {
	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	durations := make(map[string]int64)
	for id, t := range g.Tasks {
		if t.DurationSecs > 0 {
			durations[id] = int64(math.Ceil(t.DurationSecs))
		}
	}

	result := &CPMResult{
		Tasks:     make(map[string]*TaskSchedule),
		TopoOrder: order,
	}

	// Initialize schedules
	for _, id := range order {
		result.Tasks[id] = &TaskSchedule{TaskID: id}
	}

	// Forward pass: compute ES and EF
	for _, id := range order {
		ts := result.Tasks[id]
		// ES = max(EF of all predecessors)
		var es int64
		for _, pred := range g.RevAdj[id] {
			predTS := result.Tasks[pred]
			if predTS.EF > es {
				es = predTS.EF
			}
		}
		ts.ES = es
		ts.EF = es + durations[id]
	}

	// Total project duration
	var totalDuration int64
	for _, ts := range result.Tasks {
		if ts.EF > totalDuration {
			totalDuration = ts.EF
		}
	}
	result.TotalDuration = totalDuration

	// Backward pass in reverse topological order. Nodes that block nothing
	// finish at the end of the plan.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]

		lf := totalDuration
		for _, succ := range g.Adj[id] {
			if succTS := result.Tasks[succ]; succTS.LS < lf {
				lf = succTS.LS
			}
		}
		ts.LF = lf
		ts.LS = lf - durations[id]

		ts.Slack = ts.LS - ts.ES
		ts.IsCritical = ts.Slack == 0
	}

	// Build critical path (critical tasks in topological order)
	for _, id := range order {
		if result.Tasks[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	// Compute waves: group tasks by earliest start time
	result.Waves = computeWaves(result, g)

	return result, nil
}

// topoSort performs Kahn's algorithm for topological sorting.
func topoSort(g *graph.TaskGraph) ([]string, error) {
	inDegree := make(map[string]int)
	for id := range g.Tasks {
		inDegree[id] = len(g.RevAdj[id])
	}

	// Start with roots (in-degree 0), sorted for determinism
	var queue []string
	for id := range g.Tasks {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		// Reduce in-degree of successors
		var newReady []string
		for _, succ := range g.Adj[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.Tasks) {
		return nil, fmt.Errorf("topological sort failed: graph has a cycle (%d of %d tasks sorted)", len(order), len(g.Tasks))
	}

	return order, nil
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(result *CPMResult, g *graph.TaskGraph) []Wave {
	esGroups := make(map[int64][]string)
	for _, id := range result.TopoOrder {
		es := result.Tasks[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	// Sort ES values
	esValues := make([]int64, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Slice(esValues, func(i, j int) bool { return esValues[i] < esValues[j] })

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]
		sort.Strings(taskIDs)

		hasCritical := false
		for _, id := range taskIDs {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		// Sort critical tasks first within wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			aCrit := result.Tasks[taskIDs[a]].IsCritical
			bCrit := result.Tasks[taskIDs[b]].IsCritical
			if aCrit != bCrit {
				return aCrit
			}
			return false
		})

		waves[i] = Wave{
			Index:      i,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}

	return waves
}
