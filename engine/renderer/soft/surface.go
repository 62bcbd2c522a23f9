package soft

import (
	"fmt"
	"sync"
)

// Surface is the headless present target: it records retired frames
// instead of displaying them. Tests use it to observe exactly what would
// have reached the screen and to inject surface-lost conditions.
type Surface struct {
	mu sync.Mutex

	width      uint32
	height     uint32
	imageCount int
	created    bool

	presented  int
	lastWidth  uint32
	lastHeight uint32
	lastPix    []float32

	failNext error
}

func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) CreateOrResize(width, height uint32, imageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == 0 || height == 0 {
		return fmt.Errorf("surface with zero extent %dx%d", width, height)
	}
	s.width = width
	s.height = height
	s.imageCount = imageCount
	s.created = true
	return nil
}

func (s *Surface) PresentPixels(width, height uint32, pix []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return fmt.Errorf("present to a surface that was never created")
	}
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.presented++
	s.lastWidth = width
	s.lastHeight = height
	s.lastPix = append(s.lastPix[:0], pix...)
	return nil
}

func (s *Surface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = false
	s.lastPix = nil
	return nil
}

// FailNextPresent makes the next present return err, simulating a lost
// surface.
func (s *Surface) FailNextPresent(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Presented reports how many frames reached the surface.
func (s *Surface) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// LastFrame returns the most recently presented frame. The slice is owned
// by the surface; callers must not retain it across presents.
func (s *Surface) LastFrame() (width, height uint32, pix []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWidth, s.lastHeight, s.lastPix
}
