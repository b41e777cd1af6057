package path

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Interpolation methods a path may use.
const (
	MethodLinear   = "linear"
	MethodLagrange = "lagrange"
	MethodSpline   = "spline"
)

// MinXSeparation is how close two control points may sit on the X axis.
const MinXSeparation = 0.01

// MinPoints is the floor below which points cannot be removed.
const MinPoints = 2

var (
	ErrLocked        = errors.New("path is locked")
	ErrDuplicateX    = errors.New("a control point already exists at that x")
	ErrIndexRange    = errors.New("control point index out of range")
	ErrTooFewPoints  = errors.New("path needs at least two control points")
	ErrUnknownMethod = errors.New("unknown interpolation method")
	ErrInvalidPoint  = errors.New("control point coordinates must be finite")
)

var validMethods = map[string]struct{}{
	MethodLinear:   {},
	MethodLagrange: {},
	MethodSpline:   {},
}

// ValidMethod reports whether m is a known interpolation method.
func ValidMethod(m string) bool {
	_, ok := validMethods[m]
	return ok
}

// Point is a control point.
type Point struct {
	X float64
	Y float64
}

// Path is an ordered list of control points plus the name of the
// interpolation method. Points are kept sorted by X.
type Path struct {
	mu     sync.RWMutex
	points []Point
	method string
	locked bool
}

// New returns an empty path using linear interpolation.
func New() *Path {
	return &Path{method: MethodLinear}
}

// NewDefault returns a path seeded with its two border points.
func NewDefault(startX, endX, y float64) *Path {
	p := New()
	p.InitializeDefault(startX, endX, y)
	return p
}

func finite(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

func (p *Path) tooClose(x float64, skip int) bool {
	for i, pt := range p.points {
		if i != skip && math.Abs(pt.X-x) < MinXSeparation {
			return true
		}
	}
	return false
}

func (p *Path) sortPoints() {
	sort.SliceStable(p.points, func(i, j int) bool { return p.points[i].X < p.points[j].X })
}

// AddPoint inserts a control point and returns its index after sorting.
func (p *Path) AddPoint(x, y float64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return -1, ErrLocked
	}
	if !finite(x, y) {
		return -1, fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, x, y)
	}
	if p.tooClose(x, -1) {
		return -1, fmt.Errorf("%w: %.2f", ErrDuplicateX, x)
	}
	p.points = append(p.points, Point{X: x, Y: y})
	p.sortPoints()
	for i, pt := range p.points {
		if pt.X == x && pt.Y == y {
			return i, nil
		}
	}
	return len(p.points) - 1, nil
}

// MovePoint relocates the point at index and re-sorts.
func (p *Path) MovePoint(index int, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return ErrLocked
	}
	if index < 0 || index >= len(p.points) {
		return fmt.Errorf("%w: %d", ErrIndexRange, index)
	}
	if !finite(x, y) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, x, y)
	}
	if p.tooClose(x, index) {
		return fmt.Errorf("%w: %.2f", ErrDuplicateX, x)
	}
	p.points[index] = Point{X: x, Y: y}
	p.sortPoints()
	return nil
}

// RemovePoint deletes the point at index. The last two points stay.
func (p *Path) RemovePoint(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return ErrLocked
	}
	if len(p.points) <= MinPoints {
		return ErrTooFewPoints
	}
	if index < 0 || index >= len(p.points) {
		return fmt.Errorf("%w: %d", ErrIndexRange, index)
	}
	p.points = append(p.points[:index], p.points[index+1:]...)
	return nil
}

// Clear removes every point.
func (p *Path) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return ErrLocked
	}
	p.points = nil
	return nil
}

// SetMethod changes the interpolation method. It is allowed while locked.
func (p *Path) SetMethod(method string) error {
	if !ValidMethod(method) {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.method = method
	return nil
}

// Replace swaps in a whole new set of points. Points closer than
// MinXSeparation to an earlier one are skipped; an unknown method leaves the
// current one in place. A non-finite point rejects the whole set.
func (p *Path) Replace(points []Point, method string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locked {
		return ErrLocked
	}
	for _, pt := range points {
		if !finite(pt.X, pt.Y) {
			return fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, pt.X, pt.Y)
		}
	}
	p.points = p.points[:0]
	for _, pt := range points {
		if p.tooClose(pt.X, -1) {
			continue
		}
		p.points = append(p.points, pt)
	}
	p.sortPoints()
	if ValidMethod(method) {
		p.method = method
	}
	return nil
}

// InitializeDefault resets the path to its two border points and unlocks it.
func (p *Path) InitializeDefault(startX, endX, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.points = []Point{{X: startX, Y: y}, {X: endX, Y: y}}
	p.sortPoints()
	p.locked = false
}

// Points returns a copy of the control points.
func (p *Path) Points() []Point {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Point, len(p.points))
	copy(out, p.points)
	return out
}

func (p *Path) Method() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.method
}

func (p *Path) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.points)
}

func (p *Path) Lock() {
	p.mu.Lock()
	p.locked = true
	p.mu.Unlock()
}

func (p *Path) Unlock() {
	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

func (p *Path) Locked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locked
}
