package deal

import "fmt"

// OppositePolicy 决定已有持仓时收到反向开仓信号的处理方式。
type OppositePolicy string

const (
	OppositeIgnore  OppositePolicy = "ignore"
	OppositeReverse OppositePolicy = "reverse"
)

func ParseOppositePolicy(s string) (OppositePolicy, error) {
	switch OppositePolicy(s) {
	case "", OppositeIgnore:
		return OppositeIgnore, nil
	case OppositeReverse:
		return OppositeReverse, nil
	default:
		return "", fmt.Errorf("unknown opposite signal policy %q", s)
	}
}

type Action int

const (
	// ActionKeep 保持当前持仓，丢弃新信号。
	ActionKeep Action = iota
	// ActionOpen 当前无持仓，直接开仓。
	ActionOpen
	// ActionReverse 先平掉当前持仓再反向开仓。
	ActionReverse
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionReverse:
		return "reverse"
	default:
		return "keep"
	}
}

// Resolve 给出 incoming 开仓方向相对于 current 持仓的处理动作。
func Resolve(current *Deal, incoming Side, policy OppositePolicy) Action {
	if !current.IsOpen() {
		return ActionOpen
	}
	if current.Side == incoming {
		return ActionKeep
	}
	if policy == OppositeReverse {
		return ActionReverse
	}
	return ActionKeep
}
