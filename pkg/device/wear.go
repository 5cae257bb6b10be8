package device

import (
	"sync"
)

// WearReport summarises how writes are distributed over a device.
type WearReport struct {
	Size           int     `json:"size"`
	TotalWrites    uint64  `json:"total_writes"`
	CellsWritten   int     `json:"cells_written"`
	MaxWrites      uint64  `json:"max_writes"`
	MinWrites      uint64  `json:"min_writes"`
	MeanWrites     float64 `json:"mean_writes"`
	HottestAddress int     `json:"hottest_address"`
	Buckets        []int   `json:"buckets,omitempty"`
}

// WearCounter wraps a Device and counts byte writes per address.
type WearCounter struct {
	Device
	mutex  sync.Mutex
	counts []uint64
}

// NewWearCounter starts counting writes made through dev.
func NewWearCounter(dev Device) *WearCounter {
	return &WearCounter{
		Device: dev,
		counts: make([]uint64, dev.Size()),
	}
}

func (w *WearCounter) count(addr, n int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for i := addr; i < addr+n && i < len(w.counts); i++ {
		w.counts[i]++
	}
}

func (w *WearCounter) PutUint8(addr int, v byte) error {
	if err := w.Device.PutUint8(addr, v); err != nil {
		return err
	}
	w.count(addr, 1)
	return nil
}

func (w *WearCounter) PutUint16(addr int, v uint16) error {
	if err := w.Device.PutUint16(addr, v); err != nil {
		return err
	}
	w.count(addr, 2)
	return nil
}

func (w *WearCounter) PutUint32(addr int, v uint32) error {
	if err := w.Device.PutUint32(addr, v); err != nil {
		return err
	}
	w.count(addr, 4)
	return nil
}

// Writes returns the number of writes seen at addr.
func (w *WearCounter) Writes(addr int) uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if addr < 0 || addr >= len(w.counts) {
		return 0
	}
	return w.counts[addr]
}

// Reset clears all counters.
func (w *WearCounter) Reset() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	for i := range w.counts {
		w.counts[i] = 0
	}
}

// Wear builds a report over all addresses. buckets > 0 also splits the
// device into that many equal ranges and sums the writes of each.
func (w *WearCounter) Wear(buckets int) WearReport {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	report := WearReport{Size: len(w.counts)}
	if len(w.counts) == 0 {
		return report
	}

	report.MinWrites = w.counts[0]
	for addr, c := range w.counts {
		report.TotalWrites += c
		if c > 0 {
			report.CellsWritten++
		}
		if c > report.MaxWrites {
			report.MaxWrites = c
			report.HottestAddress = addr
		}
		if c < report.MinWrites {
			report.MinWrites = c
		}
	}
	report.MeanWrites = float64(report.TotalWrites) / float64(len(w.counts))

	if buckets > 0 {
		if buckets > len(w.counts) {
			buckets = len(w.counts)
		}
		report.Buckets = make([]int, buckets)
		for addr, c := range w.counts {
			report.Buckets[addr*buckets/len(w.counts)] += int(c)
		}
	}

	return report
}
