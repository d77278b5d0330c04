package scaling

import (
	"cmp"
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

const (
	DefaultDisableMaxPriority = 3
	DefaultPauseMaxPriority   = 5
)

// ActionKind is the lifecycle operation an Action requests.
type ActionKind string

const (
	ActionDisable ActionKind = "disable"
	ActionPause   ActionKind = "pause"
	ActionResume  ActionKind = "resume"
)

// Action is one lifecycle operation the policy wants applied to a tool.
type Action struct {
	Kind ActionKind
	Name string
}

func (a Action) String() string {
	return fmt.Sprintf("%s(%s)", a.Kind, a.Name)
}

// Policy maps a pressure level and the tool states to lifecycle actions.
//
//   - critical: disable enabled tools with priority <= DisableMaxPriority
//   - high: pause enabled tools with priority <= PauseMaxPriority
//   - low: resume every paused tool
//   - medium: nothing, so the controller does not oscillate between high and low
//
// Tools with AutoScale=false are never touched.
type Policy struct {
	DisableMaxPriority int
	PauseMaxPriority   int
}

// DefaultPolicy returns the 3/5 priority cutoffs.
func DefaultPolicy() Policy {
	return Policy{
		DisableMaxPriority: DefaultDisableMaxPriority,
		PauseMaxPriority:   DefaultPauseMaxPriority,
	}
}

// Decide is pure: the same inputs always give the same actions, sorted by tool name.
func (p Policy) Decide(level resource.Level, infos []tool.RuntimeInfo) []Action {
	var (
		kind     ActionKind
		from     = sets.New[tool.Status]()
		priority = tool.MaxPriority
	)

	switch level {
	case resource.LevelCritical:
		kind = ActionDisable
		from.Insert(tool.StatusEnabled)
		priority = p.DisableMaxPriority
	case resource.LevelHigh:
		kind = ActionPause
		from.Insert(tool.StatusEnabled)
		priority = p.PauseMaxPriority
	case resource.LevelLow:
		kind = ActionResume
		from.Insert(tool.StatusPaused)
	default:
		return nil
	}

	var actions []Action

	for _, info := range infos {
		if !info.Config.AutoScale || !from.Has(info.Status) || info.Config.Priority > priority {
			continue
		}

		actions = append(actions, Action{Kind: kind, Name: info.Name})
	}

	slices.SortFunc(actions, func(a, b Action) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return actions
}
