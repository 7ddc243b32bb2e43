package transcript

import (
	"sort"
	"strings"
	"time"
)

// PlanMarker is an enter or exit event derived from a tool-invocation
// record in the log.
type PlanMarker struct {
	Time  time.Time
	Enter bool
}

// PlanMarkers is a timestamp-sorted sequence of plan-mode transitions.
// Markers do not nest: answering "is time T in plan mode" is the state
// of the last marker at or before T.
type PlanMarkers []PlanMarker

// CollectPlanMarkers scans events for plan-mode enter/exit tool
// invocations and returns them sorted by timestamp.
func CollectPlanMarkers(events []Event) PlanMarkers {
	var markers PlanMarkers
	for _, ev := range events {
		for _, b := range ev.Blocks() {
			if b.Type != "tool_use" {
				continue
			}
			switch normalizeToolName(b.Name) {
			case "enterplanmode":
				markers = append(markers, PlanMarker{Time: ev.Time, Enter: true})
			case "exitplanmode":
				markers = append(markers, PlanMarker{Time: ev.Time, Enter: false})
			}
		}
	}
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Time.Before(markers[j].Time) })
	return markers
}

// At reports whether time t falls inside plan mode: last-marker-wins
// over all markers at or before t.
func (m PlanMarkers) At(t time.Time) bool {
	inPlan := false
	for _, marker := range m {
		if marker.Time.After(t) {
			break
		}
		inPlan = marker.Enter
	}
	return inPlan
}

func normalizeToolName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}
