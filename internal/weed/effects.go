package weed

// Effect entry points a filter class may publish as function leaves.
// Plugins build these as closures over their own binding.
type (
	InitFunc    func(inst Handle) Status
	ProcessFunc func(inst Handle, timecode int64) Status
	DeinitFunc  func(inst Handle) Status
)

// TicksPerSecond is the timecode resolution passed to ProcessFunc.
const TicksPerSecond int64 = 100_000_000
