package sweep

import "fmt"

// OuterState is the controller's position in the tuning-constant loop.
type OuterState int

const (
	NotStarted OuterState = iota
	RewritingConfig
	Building
	Done
)

func (s OuterState) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case RewritingConfig:
		return "rewriting-config"
	case Building:
		return "building"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("outer(%d)", int(s))
	}
}

// InnerState is the controller's position in the input-size loop.
type InnerState int

const (
	GeneratingInput InnerState = iota
	Running
	Logging
	CellDone
)

func (s InnerState) String() string {
	switch s {
	case GeneratingInput:
		return "generating-input"
	case Running:
		return "running"
	case Logging:
		return "logging"
	case CellDone:
		return "done"
	default:
		return fmt.Sprintf("inner(%d)", int(s))
	}
}

// Cell identifies one (constant, input size) unit of work.
type Cell struct {
	Constant int
	Size     int64
}

func (c Cell) String() string {
	if c.Size == noSize {
		return fmt.Sprintf("cell (constant=%d)", c.Constant)
	}

	if c.Constant == 0 {
		return fmt.Sprintf("cell (size=%d)", c.Size)
	}

	return fmt.Sprintf("cell (constant=%d, size=%d)", c.Constant, c.Size)
}

// BlockCount returns ceil(size / (constant * unitBytes)), the number of
// parallel work units implied by a cell. It is 0 when size is 0 or when no
// unit size is defined.
func BlockCount(size int64, constant int, unitBytes int64) int64 {
	per := int64(constant) * unitBytes
	if size <= 0 || per <= 0 {
		return 0
	}

	return (size + per - 1) / per
}
