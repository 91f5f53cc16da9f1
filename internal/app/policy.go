package app

import (
	"fmt"

	"github.com/dkeye/Tocata/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose outbound queue is full.
type Policy interface {
	OnBackPressure(conn core.Connection) BackpressureAction
}

type SimplePolicy struct {
	Kick bool
}

func (p SimplePolicy) OnBackPressure(core.Connection) BackpressureAction {
	if p.Kick {
		return KickMember
	}
	return DropFrame
}

// PolicyFromString maps the slow_consumer config value to a Policy.
func PolicyFromString(mode string) (Policy, error) {
	switch mode {
	case "", "drop":
		return SimplePolicy{}, nil
	case "kick":
		return SimplePolicy{Kick: true}, nil
	default:
		return nil, fmt.Errorf("unknown slow consumer policy %q", mode)
	}
}
