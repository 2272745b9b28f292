package sector

// Direction is one of the four grid directions.
type Direction int

const (
	North Direction = iota // +Y
	East                   // +X
	South                  // -Y
	West                   // -X
)

// Directions lists all four directions in a fixed order.
var Directions = [4]Direction{North, East, South, West}

// Offset returns the grid step for d.
func (d Direction) Offset() (dx, dy int32) {
	switch d {
	case North:
		return 0, 1
	case East:
		return 1, 0
	case South:
		return 0, -1
	case West:
		return -1, 0
	}
	return 0, 0
}

// Opposite returns the direction pointing the other way.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return "unknown"
}

// DirectionTo returns the direction from a to an orthogonally adjacent b.
// ok is false when b is not a direct neighbor of a.
func DirectionTo(a, b Sector) (d Direction, ok bool) {
	dx, dy := b.Sub(a)
	for _, dir := range Directions {
		ox, oy := dir.Offset()
		if ox == dx && oy == dy {
			return dir, true
		}
	}
	return 0, false
}
