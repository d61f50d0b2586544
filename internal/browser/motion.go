package browser

import "github.com/go-rod/rod/lib/proto"

// easedPath returns the points a pointer visits moving from -> to, ending
// exactly on to. With steps < 2 the pointer jumps.
func easedPath(from, to proto.Point, steps int) []proto.Point {
	if steps < 2 || from == to {
		return []proto.Point{to}
	}
	path := make([]proto.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := easeInOutQuad(float64(i) / float64(steps))
		path = append(path, proto.Point{
			X: from.X + t*(to.X-from.X),
			Y: from.Y + t*(to.Y-from.Y),
		})
	}
	path[len(path)-1] = to
	return path
}

// easeInOutQuad provides smooth acceleration/deceleration
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - (-2*t+2)*(-2*t+2)/2
}
