package scene

import (
	"math"
	"math/rand/v2"
)

// Vec3 is a point or direction in world units.
type Vec3 struct{ X, Y, Z float64 }

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float64         { return math.Sqrt(a.Dot(a)) }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}

func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// Rotate applies Euler angles in XYZ order, the same convention as the
// original scene graph: v' = Rx * Ry * Rz * v.
func (a Vec3) Rotate(x, y, z float64) Vec3 {
	if z != 0 {
		s, c := math.Sincos(z)
		a = Vec3{a.X*c - a.Y*s, a.X*s + a.Y*c, a.Z}
	}
	if y != 0 {
		s, c := math.Sincos(y)
		a = Vec3{a.X*c + a.Z*s, a.Y, -a.X*s + a.Z*c}
	}
	if x != 0 {
		s, c := math.Sincos(x)
		a = Vec3{a.X, a.Y*c - a.Z*s, a.Y*s + a.Z*c}
	}
	return a
}

// Mesh is a wireframe: vertices plus unique undirected edges.
type Mesh struct {
	Verts []Vec3
	Edges [][2]int
}

var (
	icoT     = (1 + math.Sqrt(5)) / 2
	icoVerts = []Vec3{
		{-1, icoT, 0}, {1, icoT, 0}, {-1, -icoT, 0}, {1, -icoT, 0},
		{0, -1, icoT}, {0, 1, icoT}, {0, -1, -icoT}, {0, 1, -icoT},
		{icoT, 0, -1}, {icoT, 0, 1}, {-icoT, 0, -1}, {-icoT, 0, 1},
	}
	icoFaces = [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
)

// Icosahedron builds an icosahedron of the given radius. Each level of
// detail splits every face into four and pushes the new vertices onto the
// sphere.
func Icosahedron(radius float64, detail int) Mesh {
	verts := make([]Vec3, len(icoVerts))
	for i, v := range icoVerts {
		verts[i] = v.Normalize()
	}
	faces := icoFaces

	for range detail {
		mid := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			key := [2]int{min(a, b), max(a, b)}
			if i, ok := mid[key]; ok {
				return i
			}
			verts = append(verts, verts[a].Add(verts[b]).Normalize())
			mid[key] = len(verts) - 1
			return len(verts) - 1
		}
		next := make([][3]int, 0, len(faces)*4)
		for _, f := range faces {
			ab, bc, ca := midpoint(f[0], f[1]), midpoint(f[1], f[2]), midpoint(f[2], f[0])
			next = append(next,
				[3]int{f[0], ab, ca},
				[3]int{f[1], bc, ab},
				[3]int{f[2], ca, bc},
				[3]int{ab, bc, ca},
			)
		}
		faces = next
	}

	for i := range verts {
		verts[i] = verts[i].Scale(radius)
	}
	return Mesh{Verts: verts, Edges: edgesOf(faces)}
}

func edgesOf(faces [][3]int) [][2]int {
	seen := make(map[[2]int]bool)
	var edges [][2]int
	for _, f := range faces {
		for k := range 3 {
			a, b := f[k], f[(k+1)%3]
			key := [2]int{min(a, b), max(a, b)}
			if !seen[key] {
				seen[key] = true
				edges = append(edges, key)
			}
		}
	}
	return edges
}

// Particles scatters n points uniformly in a cube of the given side,
// centered on the origin. The same seed gives the same cloud.
func Particles(n int, side float64, seed uint64) []Vec3 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pts := make([]Vec3, n)
	for i := range pts {
		pts[i] = Vec3{
			(rng.Float64() - 0.5) * side,
			(rng.Float64() - 0.5) * side,
			(rng.Float64() - 0.5) * side,
		}
	}
	return pts
}
