// Package priority defines the override order used when several modules
// assign the same option. Higher levels win; Force wins over every numeric level.
package priority

import (
	"fmt"
	"strconv"
	"strings"
)

// Named levels for assignments. Higher levels override lower ones.
const (
	LevelLow     = 50
	LevelDefault = 100
	LevelHigh    = 150
)

// namedLevels maps level names accepted in module files to numeric levels.
var namedLevels = map[string]int{
	"low":     LevelLow,
	"default": LevelDefault,
	"normal":  LevelDefault,
	"high":    LevelHigh,
}

// Priority is either Normal(n) or Force. The zero value is Normal(0).
type Priority struct {
	level int
	force bool
}

// Force is strictly above every Normal level.
var Force = Priority{force: true}

// Default is the level of an assignment without any marker.
var Default = Normal(LevelDefault)

// Normal returns a numeric priority level.
func Normal(level int) Priority {
	return Priority{level: level}
}

// IsForce reports whether p is the force level.
func (p Priority) IsForce() bool {
	return p.force
}

// Level returns the numeric level. It is meaningless for Force.
func (p Priority) Level() int {
	return p.level
}

// Compare returns -1, 0 or 1 when p is below, equal to or above q.
func (p Priority) Compare(q Priority) int {
	switch {
	case p.force && q.force:
		return 0
	case p.force:
		return 1
	case q.force:
		return -1
	case p.level < q.level:
		return -1
	case p.level > q.level:
		return 1
	default:
		return 0
	}
}

// String renders "force" or the numeric level.
func (p Priority) String() string {
	if p.force {
		return "force"
	}
	return strconv.Itoa(p.level)
}

// Parse accepts "force", a named level (low, default, normal, high) or an integer.
func Parse(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "force" {
		return Force, nil
	}
	if level, ok := namedLevels[s]; ok {
		return Normal(level), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Priority{}, fmt.Errorf("invalid priority %q: want force, low, default, high or an integer", s)
	}
	return Normal(n), nil
}

// Max returns the highest priority in ps. It panics on an empty slice.
func Max(ps []Priority) Priority {
	best := ps[0]
	for _, p := range ps[1:] {
		if p.Compare(best) > 0 {
			best = p
		}
	}
	return best
}
