package outline

import "math/bits"

// direction of a unit boundary edge in image space (y pointing down).
// Turning right adds one.
type direction uint8

const (
	east direction = iota
	south
	west
	north
)

var steps = [4][2]int{
	east:  {1, 0},
	south: {0, 1},
	west:  {-1, 0},
	north: {0, -1},
}

// run is a straight stretch of collinear unit edges.
type run struct {
	dir    direction
	length int
}

func (r run) command() PathCommand {
	switch r.dir {
	case east:
		return HorizontalLineTo{DX: float32(r.length)}
	case west:
		return HorizontalLineTo{DX: -float32(r.length)}
	case south:
		return VerticalLineTo{DY: float32(r.length)}
	default:
		return VerticalLineTo{DY: -float32(r.length)}
	}
}

// BoundaryTracer is the default Tracer. It walks the pixel-edge boundary
// between occupied and empty pixels with the occupied side on the right:
// outer boundaries run clockwise on screen, holes counter-clockwise.
// Collinear unit edges are merged into one command and the last side of
// every loop is left to ClosePath.
//
// Pixels that only touch at a corner belong to separate loops.
type BoundaryTracer struct{}

// Trace implements Tracer.
func (BoundaryTracer) Trace(m *Mask) []PathCommand {
	vw := m.Width + 1

	// Outgoing boundary edges per pixel corner, one bit per direction.
	// Every corner has as many incoming as outgoing edges, so a walk
	// started on any edge can only end where it started.
	out := make([]uint8, vw*(m.Height+1))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.At(x, y) {
				continue
			}
			if !m.At(x, y-1) {
				out[y*vw+x] |= 1 << east
			}
			if !m.At(x+1, y) {
				out[y*vw+x+1] |= 1 << south
			}
			if !m.At(x, y+1) {
				out[(y+1)*vw+x+1] |= 1 << west
			}
			if !m.At(x-1, y) {
				out[(y+1)*vw+x] |= 1 << north
			}
		}
	}

	var cmds []PathCommand
	for v := range out {
		for out[v] != 0 {
			cmds = traceLoop(out, vw, v, cmds)
		}
	}
	return cmds
}

// traceLoop consumes one closed loop starting at corner start and appends
// its commands.
func traceLoop(out []uint8, vw, start int, cmds []PathCommand) []PathCommand {
	x, y := start%vw, start/vw
	cmds = append(cmds, MoveTo{X: float32(x), Y: float32(y)})

	var runs []run
	d := direction(bits.TrailingZeros8(out[start]))
	v := start
	for {
		out[v] &^= 1 << d
		if n := len(runs); n > 0 && runs[n-1].dir == d {
			runs[n-1].length++
		} else {
			runs = append(runs, run{dir: d, length: 1})
		}

		x += steps[d][0]
		y += steps[d][1]
		v = y*vw + x
		if v == start {
			break
		}
		d = nextDirection(out[v], d)
	}

	for _, r := range runs[:len(runs)-1] {
		cmds = append(cmds, r.command())
	}
	return append(cmds, ClosePath{})
}

// nextDirection picks the outgoing edge at a corner reached heading d,
// preferring a right turn so diagonal neighbours stay apart.
func nextDirection(edges uint8, d direction) direction {
	for _, c := range [3]direction{(d + 1) % 4, d, (d + 3) % 4} {
		if edges&(1<<c) != 0 {
			return c
		}
	}
	panic("outline: boundary walk reached a corner with no way out")
}
