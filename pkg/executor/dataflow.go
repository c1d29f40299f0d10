package executor

// DataFlow maps flow keys to the last value produced for them during one
// run. Keys are "<agent>_output", "<agent>_input", output binding names and
// intent names. It is owned by a single run and is not safe for concurrent
// use.
type DataFlow struct {
	values map[string]string
}

// NewDataFlow returns an empty table.
func NewDataFlow() *DataFlow {
	return &DataFlow{values: map[string]string{}}
}

func (d *DataFlow) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *DataFlow) Set(key, value string) {
	d.values[key] = value
}

// Snapshot returns a copy of the table.
func (d *DataFlow) Snapshot() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// InputKey is the flow key a connect routes into.
func InputKey(agent string) string { return agent + "_input" }

// OutputKey is the flow key an intent's result is stored under.
func OutputKey(agent string) string { return agent + "_output" }
