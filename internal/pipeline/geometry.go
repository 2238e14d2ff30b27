package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// parseHHMM parses a "HH:MM" label into decimal hours, e.g. "06:30" -> 6.5.
func parseHHMM(label string) (float64, error) {
	parts := strings.SplitN(label, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("pipeline: malformed time label %q, want HH:MM", label)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("pipeline: malformed hour in %q: %w", label, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("pipeline: malformed minute in %q: %w", label, err)
	}
	return float64(h) + float64(m)/60, nil
}

// windowGeometry is the query length m and the context range [ctxStart,
// ctxEnd) in observation units, the anchors the Distance Generator and
// Context Manager use. It is distinct from the feature window
// [winStart, winEnd), which is the window table's own to/observations
// taken at face value.
type windowGeometry struct {
	ctxStart, ctxEnd, m int
	winStart, winEnd    int
}

// deriveGeometry implements the §4.7 step-1 recipe: the first window's
// context is a fixed leading slice of length m_ctx and its query length is
// computed from the window's own "to" label; every later window's context
// trails its "from" label by m_ctx and its query length is the window's
// observation count directly. The feature window, used for the energy and
// temperature extractors, is always the window table's own to/observations
// taken at face value, independent of the context-range computation.
func deriveGeometry(k int, from, to string, observations int, mCtxHours float64, p int) (windowGeometry, error) {
	ctxLen := round(mCtxHours * float64(p) / 24)
	if ctxLen < 1 {
		return windowGeometry{}, fmt.Errorf("pipeline: context-hours %v too small for %d samples/day", mCtxHours, p)
	}

	toHours, err := parseHHMM(to)
	if err != nil {
		return windowGeometry{}, err
	}

	var g windowGeometry
	g.winEnd = round(toHours * float64(p) / 24)
	g.winStart = g.winEnd - observations
	if g.winStart < 0 || g.winEnd > p || g.winStart >= g.winEnd {
		return windowGeometry{}, fmt.Errorf("pipeline: window %d feature range [%d,%d) invalid for %d samples/day", k, g.winStart, g.winEnd, p)
	}

	if k == 0 {
		g.ctxStart = 0
		g.ctxEnd = ctxLen
		g.m = round((toHours - 0.25 - mCtxHours) * float64(p) / 24)
	} else {
		fromHours, err := parseHHMM(from)
		if err != nil {
			return windowGeometry{}, err
		}
		g.ctxEnd = round((fromHours + 0.25) * float64(p) / 24)
		g.ctxStart = g.ctxEnd - ctxLen
		g.m = observations
	}

	if g.ctxStart < 0 || g.ctxEnd > p || g.ctxStart >= g.ctxEnd {
		return windowGeometry{}, fmt.Errorf("pipeline: window %d context range [%d,%d) invalid for %d samples/day", k, g.ctxStart, g.ctxEnd, p)
	}
	if g.m < 4 {
		return windowGeometry{}, fmt.Errorf("pipeline: window %d derived query length %d is below the minimum of 4", k, g.m)
	}
	return g, nil
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
