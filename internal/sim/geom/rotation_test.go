package geom

import "testing"

func TestNormalizeQuarterTurns_AcceptsDegreesAndQuarterTurns(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: 0},
		{in: 1, want: 1},
		{in: 3, want: 3},
		{in: 4, want: 0},
		{in: -1, want: 3},
		{in: 90, want: 1},
		{in: 180, want: 2},
		{in: 270, want: 3},
		{in: 360, want: 0},
		{in: -90, want: 3},
	}
	for _, c := range cases {
		if got := NormalizeQuarterTurns(c.in); got != c.want {
			t.Fatalf("NormalizeQuarterTurns(%d)=%d want %d", c.in, got, c.want)
		}
	}
}

func TestQuarterTurnsMatchAxisConvention(t *testing.T) {
	p := Vec3i{X: 1, Y: 2, Z: 3}
	if got, want := RotX.Apply(p), (Vec3i{X: 1, Y: -3, Z: 2}); got != want {
		t.Fatalf("RotX: got %+v want %+v", got, want)
	}
	if got, want := RotY.Apply(p), (Vec3i{X: 3, Y: 2, Z: -1}); got != want {
		t.Fatalf("RotY: got %+v want %+v", got, want)
	}
	if got, want := RotZ.Apply(p), (Vec3i{X: -2, Y: 1, Z: 3}); got != want {
		t.Fatalf("RotZ: got %+v want %+v", got, want)
	}
}

func TestTurns_AppliesXThenYThenZ(t *testing.T) {
	p := Vec3i{X: 1, Y: 2, Z: 3}
	want := RotZ.Apply(RotY.Apply(RotX.Apply(p)))
	if got := Turns(1, 1, 1).Apply(p); got != want {
		t.Fatalf("Turns(1,1,1): got %+v want %+v", got, want)
	}
	if Turns(4, -4, 8) != Identity {
		t.Fatalf("full turns should reduce to identity")
	}
}

func TestCubeRotations_AreTheTwentyFourProperRotations(t *testing.T) {
	rots := CubeRotations()
	if len(rots) != 24 {
		t.Fatalf("rotations: got %d want 24", len(rots))
	}
	if rots[0].Matrix != Identity || rots[0].Turns != [3]int{0, 0, 0} {
		t.Fatalf("first rotation should be identity, got %+v", rots[0])
	}
	seen := map[Matrix]bool{}
	for _, r := range rots {
		if r.Matrix.Det() != 1 {
			t.Fatalf("rotation %+v is not proper", r)
		}
		if seen[r.Matrix] {
			t.Fatalf("duplicate rotation %+v", r)
		}
		seen[r.Matrix] = true
		if Turns(r.Turns[0], r.Turns[1], r.Turns[2]) != r.Matrix {
			t.Fatalf("turns %v do not rebuild matrix", r.Turns)
		}
	}
}
