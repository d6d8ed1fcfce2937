package outline

// PathCommand is one step of a traced boundary. Only the four commands in
// this file exist; boundary tracers emit nothing else.
type PathCommand interface {
	isPathCommand()
}

// MoveTo starts a new loop at an absolute position.
type MoveTo struct {
	X, Y float32
}

func (MoveTo) isPathCommand() {}

// HorizontalLineTo draws from the cursor by DX along the x axis.
type HorizontalLineTo struct {
	DX float32
}

func (HorizontalLineTo) isPathCommand() {}

// VerticalLineTo draws from the cursor by DY along the y axis.
type VerticalLineTo struct {
	DY float32
}

func (VerticalLineTo) isPathCommand() {}

// ClosePath draws from the cursor back to the last MoveTo position.
type ClosePath struct{}

func (ClosePath) isPathCommand() {}

// Tracer turns an occupancy mask into a single merged path describing the
// boundaries of all occupied regions. Implementations used with
// Options.Workers > 1 must be safe for concurrent use.
type Tracer interface {
	Trace(m *Mask) []PathCommand
}

// TracerFunc adapts a function to the Tracer interface.
type TracerFunc func(m *Mask) []PathCommand

// Trace calls f(m).
func (f TracerFunc) Trace(m *Mask) []PathCommand {
	return f(m)
}
