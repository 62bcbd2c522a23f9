package renderer

import (
	"errors"
	"fmt"
)

// MaxMaterials caps the material table. The table never grows past it
// because growing would force a resynchronization of every in-flight frame.
const MaxMaterials = 12

var (
	ErrMaterialTableFull       = errors.New("material table is full")
	ErrMaterialIndexOutOfRange = errors.New("material index out of range")
)

// MaterialTable is a fixed-capacity, append-only material store. After
// upload it is shared read-only across all in-flight frames, so no locking
// is needed on the read path.
type MaterialTable struct {
	materials [MaxMaterials]Material
	count     int
}

func NewMaterialTable() *MaterialTable {
	return &MaterialTable{}
}

// Add appends a material and returns its index. Inserts beyond capacity are
// rejected, never silently grown.
func (mt *MaterialTable) Add(m Material) (uint32, error) {
	if mt.count >= MaxMaterials {
		return 0, fmt.Errorf("add material %d: %w", mt.count, ErrMaterialTableFull)
	}
	index := uint32(mt.count)
	mt.materials[index] = m
	mt.count++
	return index, nil
}

func (mt *MaterialTable) Count() int {
	return mt.count
}

// Validate checks a draw-time material reference. Out-of-range indices are
// rejected before any GPU submission, never clamped.
func (mt *MaterialTable) Validate(index uint32) error {
	if index >= uint32(mt.count) {
		return fmt.Errorf("material index %d, table size %d: %w", index, mt.count, ErrMaterialIndexOutOfRange)
	}
	return nil
}

func (mt *MaterialTable) Get(index uint32) (Material, error) {
	if err := mt.Validate(index); err != nil {
		return Material{}, err
	}
	return mt.materials[index], nil
}

// Snapshot returns a copy of the live entries, in upload layout order.
func (mt *MaterialTable) Snapshot() []Material {
	out := make([]Material, mt.count)
	copy(out, mt.materials[:mt.count])
	return out
}

// Replace swaps the whole table content. Used by configuration hot-reload;
// the caller must have drained the GPU timeline first and must re-upload to
// the device afterwards.
func (mt *MaterialTable) Replace(materials []Material) error {
	if len(materials) > MaxMaterials {
		return fmt.Errorf("replace with %d materials: %w", len(materials), ErrMaterialTableFull)
	}
	for i := range mt.materials {
		mt.materials[i] = Material{}
	}
	copy(mt.materials[:], materials)
	mt.count = len(materials)
	return nil
}
