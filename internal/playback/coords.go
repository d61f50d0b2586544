package playback

// clampPoint forces (x, y) into [0, width-1] x [0, height-1] and reports
// whether anything changed. A non-positive screen dimension leaves that axis
// pinned to 0.
func clampPoint(x, y, width, height int) (int, int, bool) {
	cx := clampAxis(x, width)
	cy := clampAxis(y, height)
	return cx, cy, cx != x || cy != y
}

func clampAxis(v, size int) int {
	if v < 0 || size <= 0 {
		return 0
	}
	if v > size-1 {
		return size - 1
	}
	return v
}
