package path

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath_DefaultPoints(t *testing.T) {
	p := NewDefault(0, 19, 10)
	assert.Equal(t, []Point{{0, 10}, {19, 10}}, p.Points())
	assert.Equal(t, MethodLinear, p.Method())
	assert.False(t, p.Locked())
}

func TestPath_AddKeepsXOrder(t *testing.T) {
	p := NewDefault(0, 19, 10)

	idx, err := p.AddPoint(5, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = p.AddPoint(12, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	assert.Equal(t, []Point{{0, 10}, {5, 3}, {12, 7}, {19, 10}}, p.Points())
}

func TestPath_RejectsNearDuplicateX(t *testing.T) {
	p := NewDefault(0, 19, 10)
	_, err := p.AddPoint(5, 3)
	require.NoError(t, err)

	_, err = p.AddPoint(5.005, 1)
	assert.ErrorIs(t, err, ErrDuplicateX)
	assert.Equal(t, 3, p.Len())

	// Moving a point onto itself is fine, onto a neighbour is not.
	require.NoError(t, p.MovePoint(1, 5.001, 4))
	assert.ErrorIs(t, p.MovePoint(1, 19, 4), ErrDuplicateX)
}

func TestPath_MoveResorts(t *testing.T) {
	p := NewDefault(0, 19, 10)
	_, err := p.AddPoint(5, 3)
	require.NoError(t, err)
	_, err = p.AddPoint(10, 3)
	require.NoError(t, err)

	require.NoError(t, p.MovePoint(1, 15, 1))
	assert.Equal(t, []Point{{0, 10}, {10, 3}, {15, 1}, {19, 10}}, p.Points())
	assert.ErrorIs(t, p.MovePoint(9, 1, 1), ErrIndexRange)
}

func TestPath_RemoveKeepsTwoPoints(t *testing.T) {
	p := NewDefault(0, 19, 10)
	assert.ErrorIs(t, p.RemovePoint(0), ErrTooFewPoints)

	_, err := p.AddPoint(5, 3)
	require.NoError(t, err)
	assert.ErrorIs(t, p.RemovePoint(3), ErrIndexRange)
	require.NoError(t, p.RemovePoint(1))
	assert.Equal(t, 2, p.Len())
}

func TestPath_Lock(t *testing.T) {
	p := NewDefault(0, 19, 10)
	p.Lock()

	_, err := p.AddPoint(5, 3)
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, p.MovePoint(0, 1, 1), ErrLocked)
	assert.ErrorIs(t, p.RemovePoint(0), ErrLocked)
	assert.ErrorIs(t, p.Clear(), ErrLocked)
	assert.ErrorIs(t, p.Replace(nil, MethodLinear), ErrLocked)
	assert.NoError(t, p.SetMethod(MethodSpline))

	p.Unlock()
	_, err = p.AddPoint(5, 3)
	assert.NoError(t, err)

	p.Lock()
	p.InitializeDefault(0, 19, 10)
	assert.False(t, p.Locked())
}

func TestPath_SetMethod(t *testing.T) {
	p := New()
	for _, m := range []string{MethodLagrange, MethodSpline, MethodLinear} {
		require.NoError(t, p.SetMethod(m))
		assert.Equal(t, m, p.Method())
	}
	assert.ErrorIs(t, p.SetMethod("bezier"), ErrUnknownMethod)
	assert.Equal(t, MethodLinear, p.Method())
}

func TestPath_Replace(t *testing.T) {
	p := NewDefault(0, 19, 10)
	require.NoError(t, p.Replace([]Point{{19, 10}, {5, 3}, {0, 10}, {5.001, 9}}, MethodLagrange))
	assert.Equal(t, []Point{{0, 10}, {5, 3}, {19, 10}}, p.Points())
	assert.Equal(t, MethodLagrange, p.Method())

	require.NoError(t, p.Replace([]Point{{0, 1}, {1, 1}}, "bogus"))
	assert.Equal(t, MethodLagrange, p.Method())
}

func TestPath_PointsIsACopy(t *testing.T) {
	p := NewDefault(0, 19, 10)
	pts := p.Points()
	pts[0].Y = 99
	assert.Equal(t, float64(10), p.Points()[0].Y)
}

func TestPath_RejectsNonFinitePoints(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	tests := []struct {
		name  string
		apply func(p *Path) error
	}{
		{name: "add nan x", apply: func(p *Path) error { _, err := p.AddPoint(nan, 1); return err }},
		{name: "add inf y", apply: func(p *Path) error { _, err := p.AddPoint(3, -inf); return err }},
		{name: "move nan y", apply: func(p *Path) error { return p.MovePoint(0, 1, nan) }},
		{name: "move inf x", apply: func(p *Path) error { return p.MovePoint(1, inf, 1) }},
		{name: "replace", apply: func(p *Path) error {
			return p.Replace([]Point{{0, 1}, {nan, 2}, {9, 3}}, MethodSpline)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewDefault(0, 19, 10)
			assert.ErrorIs(t, tt.apply(p), ErrInvalidPoint)
			assert.Equal(t, []Point{{0, 10}, {19, 10}}, p.Points())
			assert.Equal(t, MethodLinear, p.Method())
		})
	}
}
