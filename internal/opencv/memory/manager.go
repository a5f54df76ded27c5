package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"omr-rectify/internal/logger"
	"omr-rectify/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Manager accounts for every tracked Mat in flight. Batch runs hold many
// decoded sheets at once, so it enforces a soft ceiling and periodically
// reports leak suspects.
type Manager struct {
	mu           sync.RWMutex
	logger       logger.Logger
	maxMemory    int64
	usedMemory   int64
	allocCount   int64
	deallocCount int64
	activeMats   map[uint64]*matInfo
	ctx          context.Context
	cancel       context.CancelFunc
}

type matInfo struct {
	tag       string
	size      int64
	timestamp time.Time
}

func NewManager(log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:     log,
		maxMemory:  2 * 1024 * 1024 * 1024,
		activeMats: make(map[uint64]*matInfo),
		ctx:        ctx,
		cancel:     cancel,
	}

	go m.monitorMemory()
	return m
}

// GetMat allocates a tracked Mat, failing once the soft memory ceiling
// would be crossed.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType, tag string) (*safe.Mat, error) {
	m.mu.RLock()
	used := m.usedMemory
	m.mu.RUnlock()

	if used > m.maxMemory {
		runtime.GC()
		return nil, fmt.Errorf("memory limit exceeded: %d bytes in use, limit is %d", used, m.maxMemory)
	}

	return safe.NewMatWithTracker(rows, cols, matType, m, tag)
}

// AdoptMat wraps an untracked gocv.Mat produced by raw OpenCV calls,
// taking ownership.
func (m *Manager) AdoptMat(mat gocv.Mat, tag string) (*safe.Mat, error) {
	return safe.WrapMat(mat, m, tag)
}

// CloneMat copies src into a tracked Mat.
func (m *Manager) CloneMat(src gocv.Mat, tag string) (*safe.Mat, error) {
	return safe.NewMatFromMatWithTracker(src, m, tag)
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	m.usedMemory += size
	m.allocCount++
	m.activeMats[id] = &matInfo{tag: tag, size: size, timestamp: time.Now()}
	m.mu.Unlock()
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	if info, exists := m.activeMats[id]; exists {
		delete(m.activeMats, id)
		m.usedMemory -= info.size
	}
	m.deallocCount++
	m.mu.Unlock()
}

// ReleaseMat closes a tracked Mat; nil is a no-op.
func (m *Manager) ReleaseMat(mat *safe.Mat, tag string) {
	if mat == nil {
		return
	}
	mat.Close()
}

func (m *Manager) GetUsedMemory() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedMemory
}

func (m *Manager) GetStats() (allocCount, deallocCount int64, usedMemory int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocCount, m.deallocCount, m.usedMemory
}

func (m *Manager) GetActiveMatCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeMats)
}

func (m *Manager) Cleanup() {
	m.cancel()

	m.mu.Lock()
	remaining := len(m.activeMats)
	m.mu.Unlock()

	if remaining > 0 {
		m.logger.Warning("MemoryManager", "mats still active at cleanup", map[string]interface{}{
			"active_mats": remaining,
		})
	}
}

func (m *Manager) monitorMemory() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performMonitoringCheck()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) performMonitoringCheck() {
	alloc, dealloc, used := m.GetStats()
	activeCount := m.GetActiveMatCount()

	m.logger.Debug("MemoryManager", "memory statistics", map[string]interface{}{
		"allocations":   alloc,
		"deallocations": dealloc,
		"used_bytes":    used,
		"active_mats":   activeCount,
	})

	if activeCount > 50 {
		m.logOldestMats(5)
	}

	if used > m.maxMemory*8/10 {
		runtime.GC()
	}
}

func (m *Manager) logOldestMats(count int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type aged struct {
		tag string
		age time.Duration
	}

	now := time.Now()
	oldest := make([]aged, 0, len(m.activeMats))
	for _, info := range m.activeMats {
		oldest = append(oldest, aged{tag: info.tag, age: now.Sub(info.timestamp)})
	}

	for i := 0; i < len(oldest)-1; i++ {
		for j := i + 1; j < len(oldest); j++ {
			if oldest[i].age < oldest[j].age {
				oldest[i], oldest[j] = oldest[j], oldest[i]
			}
		}
	}

	if count > len(oldest) {
		count = len(oldest)
	}

	for _, entry := range oldest[:count] {
		m.logger.Warning("MemoryManager", "long-lived Mat", map[string]interface{}{
			"tag": entry.tag,
			"age": entry.age,
		})
	}
}
