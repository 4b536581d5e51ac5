package geo

import "github.com/paulmach/orb"

// polygonContains casts a horizontal ray from p and counts edge crossings over
// every ring of the polygon. An odd total means inside, so holes are excluded.
func polygonContains(poly orb.Polygon, p orb.Point) bool {
	crossings := 0
	for _, ring := range poly {
		crossings += ringCrossings(ring, p)
	}
	return crossings%2 == 1
}

func ringCrossings(ring orb.Ring, p orb.Point) int {
	x, y := p[0], p[1]
	n := len(ring)
	count := 0
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			count++
		}
	}
	return count
}
