package bench

import (
	"fmt"
)

// OperationMix is an ordered set of operations together with their per
// operation and mix level statistics.
type OperationMix struct {
	name    string
	ops     []Operation
	opStats []*Stats[*OperationRun]
	stats   *Stats[*OperationMixRun]
}

func NewMix(name string, ops ...Operation) *OperationMix {
	m := &OperationMix{
		name:    name,
		ops:     ops,
		opStats: make([]*Stats[*OperationRun], len(ops)),
		stats:   NewStats[*OperationMixRun](),
	}
	for i := range ops {
		m.opStats[i] = NewStats[*OperationRun]()
	}
	return m
}

func (m *OperationMix) Name() string { return m.name }
func (m *OperationMix) Size() int    { return len(m.ops) }

func (m *OperationMix) Op(id int) Operation {
	return m.ops[id]
}

func (m *OperationMix) Operations() []Operation {
	return m.ops
}

func (m *OperationMix) OpStats(id int) *Stats[*OperationRun] {
	return m.opStats[id]
}

func (m *OperationMix) Stats() *Stats[*OperationMixRun] {
	return m.stats
}

// OpLabel names an operation for logging.
func (m *OperationMix) OpLabel(id int) string {
	if id < 0 || id >= len(m.ops) {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("%s (#%d)", m.ops[id].Name(), id)
}

// AddOperationRun records run into the statistics of its operation.
func (m *OperationMix) AddOperationRun(run *OperationRun) error {
	if run.ID() < 0 || run.ID() >= len(m.ops) {
		return fmt.Errorf("operation id %d out of range [0,%d)", run.ID(), len(m.ops))
	}
	m.opStats[run.ID()].Add(run)
	return nil
}

func (m *OperationMix) AddMixRun(run *OperationMixRun) {
	m.stats.Add(run)
}

// Clear resets all statistics. The operations are kept.
func (m *OperationMix) Clear() {
	m.stats.Clear()
	for _, s := range m.opStats {
		s.Clear()
	}
}

// Trim removes k outliers from each end of the mix and operation
// statistics. Operations without enough samples keep all of them.
func (m *OperationMix) Trim(k int) error {
	err := m.stats.Trim(k)
	for _, s := range m.opStats {
		_ = s.Trim(k)
	}
	if err != nil {
		return fmt.Errorf("trim mix %s: %w", m.name, err)
	}
	return nil
}

// FastestOperation returns the id of the operation with the lowest average
// runtime, or -1 if no operation has samples.
func (m *OperationMix) FastestOperation() int {
	return m.pickOperation(func(a, b int64) bool { return a < b })
}

// SlowestOperation returns the id of the operation with the highest average
// runtime, or -1 if no operation has samples.
func (m *OperationMix) SlowestOperation() int {
	return m.pickOperation(func(a, b int64) bool { return a > b })
}

func (m *OperationMix) pickOperation(better func(a, b int64) bool) int {
	best := -1
	var bestAvg int64
	for id, s := range m.opStats {
		if s.Count() == 0 {
			continue
		}
		avg := int64(s.AverageRuntime())
		if best < 0 || better(avg, bestAvg) {
			best, bestAvg = id, avg
		}
	}
	return best
}
