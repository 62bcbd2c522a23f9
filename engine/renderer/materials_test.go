package renderer

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/lumen/engine/math"
)

func TestMaterialTableCapacity(t *testing.T) {
	mt := NewMaterialTable()
	for i := 0; i < MaxMaterials; i++ {
		index, err := mt.Add(Material{AmbientColor: math.NewVec4(float32(i), 0, 0, 1)})
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
		if index != uint32(i) {
			t.Fatalf("add %d returned index %d", i, index)
		}
	}

	// The table never grows: insert number thirteen is refused.
	if _, err := mt.Add(Material{}); !errors.Is(err, ErrMaterialTableFull) {
		t.Errorf("add past capacity = %v, want ErrMaterialTableFull", err)
	}
	if mt.Count() != MaxMaterials {
		t.Errorf("count = %d after rejected add, want %d", mt.Count(), MaxMaterials)
	}
}

func TestMaterialTableValidate(t *testing.T) {
	mt := NewMaterialTable()
	if _, err := mt.Add(Material{}); err != nil {
		t.Fatal(err)
	}
	if _, err := mt.Add(Material{}); err != nil {
		t.Fatal(err)
	}

	if err := mt.Validate(1); err != nil {
		t.Errorf("validate of a live index = %v", err)
	}
	// An index equal to the table size is out of range, not clamped.
	if err := mt.Validate(2); !errors.Is(err, ErrMaterialIndexOutOfRange) {
		t.Errorf("validate(count) = %v, want ErrMaterialIndexOutOfRange", err)
	}
	if _, err := mt.Get(7); !errors.Is(err, ErrMaterialIndexOutOfRange) {
		t.Errorf("get(7) = %v, want ErrMaterialIndexOutOfRange", err)
	}
}

func TestMaterialTableSnapshotIsACopy(t *testing.T) {
	mt := NewMaterialTable()
	original := Material{AmbientColor: math.NewVec4(1, 2, 3, 4)}
	if _, err := mt.Add(original); err != nil {
		t.Fatal(err)
	}

	snap := mt.Snapshot()
	snap[0].AmbientColor = math.NewVec4(9, 9, 9, 9)

	got, err := mt.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != original {
		t.Errorf("table entry mutated through a snapshot: %+v", got)
	}
}

func TestMaterialTableReplace(t *testing.T) {
	mt := NewMaterialTable()
	for i := 0; i < 3; i++ {
		if _, err := mt.Add(Material{}); err != nil {
			t.Fatal(err)
		}
	}

	replacement := []Material{
		{DiffuseColor: math.NewVec4(1, 0, 0, 1)},
		{DiffuseColor: math.NewVec4(0, 1, 0, 1)},
	}
	if err := mt.Replace(replacement); err != nil {
		t.Fatal(err)
	}
	if mt.Count() != 2 {
		t.Fatalf("count after replace = %d, want 2", mt.Count())
	}
	got, err := mt.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != replacement[1] {
		t.Errorf("entry 1 after replace = %+v, want %+v", got, replacement[1])
	}

	over := make([]Material, MaxMaterials+1)
	if err := mt.Replace(over); !errors.Is(err, ErrMaterialTableFull) {
		t.Errorf("replace past capacity = %v, want ErrMaterialTableFull", err)
	}
}
