package outline

import (
	"fmt"
	"image"

	"github.com/Faultbox/shadowcast/pkg/formats"
)

// Extract traces the alpha silhouette of region r of img and returns its
// outline in coordinates local to r.Min. A nil tracer uses BoundaryTracer.
func Extract(img image.Image, r image.Rectangle, tracer Tracer) []formats.Line {
	if tracer == nil {
		tracer = BoundaryTracer{}
	}
	return LinesFromPath(tracer.Trace(MaskFromImage(img, r)))
}

// LinesFromPath interprets path commands into directed segments. Every
// ClosePath emits the segment back to the last MoveTo, even when the cursor
// is already there.
//
// It panics on a command other than MoveTo, HorizontalLineTo,
// VerticalLineTo or ClosePath.
func LinesFromPath(cmds []PathCommand) []formats.Line {
	var (
		lines    []formats.Line
		cursor   formats.Point
		lastMove formats.Point
	)

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case MoveTo:
			cursor = formats.Point{X: c.X, Y: c.Y}
			lastMove = cursor
		case HorizontalLineTo:
			next := cursor.Add(formats.Point{X: c.DX})
			lines = append(lines, formats.Line{Start: cursor, End: next})
			cursor = next
		case VerticalLineTo:
			next := cursor.Add(formats.Point{Y: c.DY})
			lines = append(lines, formats.Line{Start: cursor, End: next})
			cursor = next
		case ClosePath:
			lines = append(lines, formats.Line{Start: cursor, End: lastMove})
			cursor = lastMove
		default:
			panic(fmt.Sprintf("outline: unsupported path command %T", cmd))
		}
	}

	return lines
}
