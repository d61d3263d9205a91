package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sample() Save {
	return Save{
		Version:   Version,
		SessionID: "s1",
		Size:      6,
		NextID:    3,
		Placed: []PieceV1{
			{PID: 1, Name: "O", Cubes: [][3]int{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}, Pos: [3]int{0, 0, 0}},
			{PID: 2, Name: "I", Cubes: [][3]int{{0, 0, 0}, {0, 1, 0}, {0, 2, 0}, {0, 3, 0}}, Pos: [3]int{0, 2, 0},
				Cells: [][3]int{{0, 2, 0}, {0, 3, 0}, {0, 4, 0}, {0, 5, 0}}},
		},
	}
}

func TestWriteRead_PlainAndCompressed(t *testing.T) {
	for _, name := range []string{"board.json", "board.json.zst"} {
		path := filepath.Join(t.TempDir(), "saves", name)
		if err := Write(path, sample()); err != nil {
			t.Fatalf("%s: Write: %v", name, err)
		}
		got, err := Read(path)
		if err != nil {
			t.Fatalf("%s: Read: %v", name, err)
		}
		if diff := cmp.Diff(sample(), got); diff != "" {
			t.Fatalf("%s: mismatch (-want +got):\n%s", name, diff)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Fatalf("%s: temp file left behind", name)
		}
	}
}

func TestWrite_CompressedIsNotPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.json.zst")
	if err := Write(path, sample()); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(string(raw), "{") {
		t.Fatalf("expected zstd frame, got JSON")
	}
}

func TestDecode_AcceptsLegacyFile(t *testing.T) {
	raw := `{"size":6,"next_id":2,"placed":[{"pid":1,"name":"T","cubes":[[0,0,0],[1,0,0],[2,0,0],[1,1,0]],"pos":[1,1,1]}]}`
	got, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Version != Version || len(got.Placed) != 1 || got.Placed[0].Pos != [3]int{1, 1, 1} {
		t.Fatalf("decoded: %+v", got)
	}
}

func TestDecode_SchemaRejections(t *testing.T) {
	cases := map[string]string{
		"missing placed": `{"size":6}`,
		"bad coord":      `{"size":6,"placed":[{"pid":1,"name":"T","cubes":[[0,0]],"pos":[0,0,0]}]}`,
		"zero pid":       `{"size":6,"placed":[{"pid":0,"name":"T","cubes":[],"pos":[0,0,0]}]}`,
		"fractional":     `{"size":6,"placed":[{"pid":1,"name":"T","cubes":[],"pos":[0.5,0,0]}]}`,
		"not json":       `{"size":`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
