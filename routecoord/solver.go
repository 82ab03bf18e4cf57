// Package routecoord computes a node's position in the shared 2-D latency
// embedding (the coordinate solver) and ranks known remotes into a bounded
// peer set (the peer selector), built on gonum.org/v1/gonum for the
// eigendecomposition the solver needs.
package routecoord

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/latticemesh/overlay/ident"
)

// ErrNoCoordinate is returned when the known subgraph is too small or too
// degenerate (rank < 2) to place self in the embedding, and also when the
// first two known remotes' embedded positions differ by (near) zero in
// either axis, which leaves the alignment angle undefined.
var ErrNoCoordinate = errors.New("routecoord: insufficient known coordinates to solve route_coord")

// KnownRemote is one row of input to Solve: a remote with an already-known
// coordinate and our measured distance to it.
type KnownRemote struct {
	NodeID   ident.NodeID
	Coord    ident.RouteCoord
	SelfDist ident.RouteScalar
}

// Solve runs classical 2-D multidimensional scaling over self plus every
// remote in known (which must already be ordered by ascending distance, the
// node_list order) and returns self's derived RouteCoord.
//
// The method: build the (m x m) proximity matrix D with self at index 0,
// square it elementwise, double-center it (B = -1/2 J D^2 J), eigendecompose
// the symmetric result, and take the top two eigenvectors scaled by sqrt of
// their eigenvalue magnitude as the candidate embedding. That embedding is
// defined only up to a rigid transform (translation + rotation/reflection),
// so the last step aligns it to the known frame using the first two known
// remotes as reference points.
func Solve(known []KnownRemote) (ident.RouteCoord, error) {
	if len(known) < 2 {
		return ident.RouteCoord{}, ErrNoCoordinate
	}

	m := len(known) + 1
	d := mat.NewSymDense(m, nil)
	for i, k := range known {
		d.SetSym(0, i+1, float64(k.SelfDist))
	}
	for i := range known {
		for j := range known {
			if i == j {
				continue
			}
			dist := float64(known[i].Coord.Dist(known[j].Coord))
			d.SetSym(i+1, j+1, dist)
		}
	}

	d2 := mat.NewDense(m, m, nil)
	d2.Apply(func(i, j int, v float64) float64 { return v * v }, d)

	j := centeringMatrix(m)
	var jd2, b mat.Dense
	jd2.Mul(j, d2)
	b.Mul(&jd2, j)
	b.Scale(-0.5, &b)

	bSym := mat.NewSymDense(m, nil)
	for r := 0; r < m; r++ {
		for c := r; c < m; c++ {
			bSym.SetSym(r, c, b.At(r, c))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(bSym, true); !ok {
		return ident.RouteCoord{}, ErrNoCoordinate
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	i1, i2 := topTwoByMagnitude(values)
	if math.Abs(values[i1]) < 1e-9 || math.Abs(values[i2]) < 1e-9 {
		return ident.RouteCoord{}, ErrNoCoordinate
	}

	scale1 := math.Sqrt(math.Abs(values[i1]))
	scale2 := math.Sqrt(math.Abs(values[i2]))

	x := func(row int) (float64, float64) {
		return vectors.At(row, i1) * scale1, vectors.At(row, i2) * scale2
	}

	x0x, x0y := x(0)
	x1x, x1y := x(1)
	x2x, x2y := x(2)

	v1x, v1y := float64(known[0].Coord.X), float64(known[0].Coord.Y)
	v2x, v2y := float64(known[1].Coord.X), float64(known[1].Coord.Y)

	shiftX := v1x - x1x
	shiftY := v1y - x1y

	xdX := x1x - x2x
	xdY := x1y - x2y
	vdX := v1x - v2x
	vdY := v1y - v2y

	if math.Abs(xdX) < 1e-9 || math.Abs(xdY) < 1e-9 {
		return ident.RouteCoord{}, ErrNoCoordinate
	}

	cosA := (vdY + vdX) / (2 * xdX)
	sinA := (vdY - vdX) / (2 * xdY)
	angle := math.Atan2(sinA, cosA)

	shiftedX := x0x + shiftX
	shiftedY := x0y + shiftY

	cosT, sinT := math.Cos(angle), math.Sin(angle)
	rotX := shiftedX*cosT - shiftedY*sinT
	rotY := shiftedX*sinT + shiftedY*cosT

	return ident.RouteCoord{
		X: int64(math.Round(rotX)),
		Y: int64(math.Round(rotY)),
	}, nil
}

func centeringMatrix(m int) *mat.Dense {
	c := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for jCol := 0; jCol < m; jCol++ {
			v := -1.0 / float64(m)
			if i == jCol {
				v += 1.0
			}
			c.Set(i, jCol, v)
		}
	}
	return c
}

// topTwoByMagnitude returns the indices of the two largest-magnitude
// eigenvalues, largest first.
func topTwoByMagnitude(values []float64) (int, int) {
	i1, i2 := 0, 1
	if math.Abs(values[i2]) > math.Abs(values[i1]) {
		i1, i2 = i2, i1
	}
	for i := 2; i < len(values); i++ {
		a := math.Abs(values[i])
		if a > math.Abs(values[i1]) {
			i2 = i1
			i1 = i
		} else if a > math.Abs(values[i2]) {
			i2 = i
		}
	}
	return i1, i2
}
