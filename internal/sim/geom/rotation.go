package geom

// Matrix is a 3x3 integer transform applied to column vectors.
type Matrix [3][3]int

var Identity = Matrix{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Quarter turns about each axis. Applied to (x,y,z):
//
//	X: (x, -z, y)
//	Y: (z, y, -x)
//	Z: (-y, x, z)
var (
	RotX = Matrix{
		{1, 0, 0},
		{0, 0, -1},
		{0, 1, 0},
	}
	RotY = Matrix{
		{0, 0, 1},
		{0, 1, 0},
		{-1, 0, 0},
	}
	RotZ = Matrix{
		{0, -1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}
)

func (m Matrix) Apply(v Vec3i) Vec3i {
	return Vec3i{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m·o, i.e. o is applied first.
func (m Matrix) Mul(o Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0
			for k := 0; k < 3; k++ {
				s += m[i][k] * o[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

func (m Matrix) Det() int {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// NormalizeQuarterTurns converts a client-provided rotation value into a stable
// quarter-turn count in [0,3].
//
// It accepts either quarter-turns (0..3) or degrees (multiples of 90).
func NormalizeQuarterTurns(r int) int {
	if r%90 == 0 && (r > 3 || r < -3) {
		r = r / 90
	}
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}

func power(m Matrix, n int) Matrix {
	out := Identity
	for i := 0; i < NormalizeQuarterTurns(n); i++ {
		out = m.Mul(out)
	}
	return out
}

// Turns builds the rotation that applies rx quarter turns about X, then ry about
// Y, then rz about Z.
func Turns(rx, ry, rz int) Matrix {
	return power(RotZ, rz).Mul(power(RotY, ry)).Mul(power(RotX, rx))
}

// CubeRotation is one proper rotation of the cube together with the first
// (rx, ry, rz) quarter-turn triple that produces it.
type CubeRotation struct {
	Matrix Matrix
	Turns  [3]int
}

var cubeRotations = buildCubeRotations()

func buildCubeRotations() []CubeRotation {
	seen := make(map[Matrix]struct{}, 24)
	out := make([]CubeRotation, 0, 24)
	for rx := 0; rx < 4; rx++ {
		for ry := 0; ry < 4; ry++ {
			for rz := 0; rz < 4; rz++ {
				m := Turns(rx, ry, rz)
				if _, ok := seen[m]; ok {
					continue
				}
				seen[m] = struct{}{}
				out = append(out, CubeRotation{Matrix: m, Turns: [3]int{rx, ry, rz}})
			}
		}
	}
	return out
}

// CubeRotations returns the 24 proper rotations of the cube in a fixed order,
// identity first.
func CubeRotations() []CubeRotation {
	out := make([]CubeRotation, len(cubeRotations))
	copy(out, cubeRotations)
	return out
}
