package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// MemoryTracker observes Mat lifetimes. The memory manager implements it;
// a nil tracker disables accounting.
type MemoryTracker interface {
	TrackAllocation(id uint64, size int64, tag string)
	TrackDeallocation(id uint64, tag string)
}

// Mat wraps a gocv.Mat with validity checks so a released buffer can never
// be handed to OpenCV again. Close is safe to call more than once; a
// finalizer catches wrappers that were never closed.
type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	id      uint64
	tracker MemoryTracker
	tag     string
}

var nextMatID uint64

func newTracked(mat gocv.Mat, tracker MemoryTracker, tag string) *Mat {
	sm := &Mat{
		mat:     mat,
		isValid: 1,
		id:      atomic.AddUint64(&nextMatID, 1),
		tracker: tracker,
		tag:     tag,
	}

	if tracker != nil {
		size := int64(mat.Rows()) * int64(mat.Cols()) * int64(matTypeSize(mat.Type()))
		tracker.TrackAllocation(sm.id, size, tag)
	}

	runtime.SetFinalizer(sm, (*Mat).finalize)
	return sm
}

// NewMat allocates a zeroed Mat of the given shape.
func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	return NewMatWithTracker(rows, cols, matType, nil, "")
}

func NewMatWithTracker(rows, cols int, matType gocv.MatType, tracker MemoryTracker, tag string) (*Mat, error) {
	if err := validateDimensions(rows, cols); err != nil {
		return nil, err
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return newTracked(mat, tracker, tag), nil
}

// NewMatFromMat clones the source into a fresh tracked Mat.
func NewMatFromMat(src gocv.Mat) (*Mat, error) {
	return NewMatFromMatWithTracker(src, nil, "")
}

func NewMatFromMatWithTracker(src gocv.Mat, tracker MemoryTracker, tag string) (*Mat, error) {
	if err := validateSourceMat(src); err != nil {
		return nil, err
	}

	cloned := src.Clone()
	if cloned.Empty() {
		cloned.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}

	return newTracked(cloned, tracker, tag), nil
}

// WrapMat takes ownership of an existing gocv.Mat without copying. The
// caller must not close the inner Mat afterwards.
func WrapMat(mat gocv.Mat, tracker MemoryTracker, tag string) (*Mat, error) {
	if err := validateSourceMat(mat); err != nil {
		return nil, err
	}
	return newTracked(mat, tracker, tag), nil
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}
	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}
	return sm.mat.Type()
}

func (sm *Mat) Clone() (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}
	if sm.mat.Empty() {
		return nil, fmt.Errorf("cannot clone empty Mat")
	}

	return NewMatFromMatWithTracker(sm.mat, sm.tracker, sm.tag+"_clone")
}

// GetMat exposes the raw gocv.Mat for OpenCV calls. The returned value is
// only usable while the wrapper stays valid.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) Close() {
	if !atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.tracker != nil {
		sm.tracker.TrackDeallocation(sm.id, sm.tag)
	}

	if !sm.mat.Empty() {
		sm.mat.Close()
	}

	runtime.SetFinalizer(sm, nil)
	sm.mat = gocv.Mat{}
	sm.tracker = nil
}

func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.Close()
	}
}

func validateDimensions(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	if rows > 32768 || cols > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size", cols, rows)
	}

	return nil
}

func validateSourceMat(src gocv.Mat) error {
	if src.Empty() {
		return fmt.Errorf("source Mat is empty")
	}

	if src.Rows() <= 0 || src.Cols() <= 0 {
		return fmt.Errorf("source Mat has invalid dimensions: %dx%d", src.Cols(), src.Rows())
	}

	return nil
}

// ValidateMatForOperation rejects nil, released, or empty Mats before they
// reach an OpenCV call.
func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("Mat is invalid for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	return nil
}

func matTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	default:
		return 1
	}
}
