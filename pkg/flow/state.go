package flow

// State is the mutable bookkeeping of one flow definition.
// It is created with the Spec and shared by every operation on it.
// It is not safe for concurrent use: flows are finalized once, single-threaded,
// before any task runs.
type State struct {
	processed bool

	// cachedParams is a snapshot of the parameter list; nil means stale.
	cachedParams []*Parameter

	// setConfigs remembers the configs whose values were resolved, in order.
	setConfigs   []*Config
	configValues map[string]ConfigValue

	// options is kept for lazy config lookups when the pipeline took its fast path.
	options map[string]any
}

func newState() *State {
	return &State{configValues: map[string]ConfigValue{}}
}

// Processed reports whether the config pipeline already ran.
func (s *State) Processed() bool { return s.processed }

// Latch marks the pipeline as run. It returns false if it already was.
func (s *State) Latch() bool {
	if s.processed {
		return false
	}
	s.processed = true
	return true
}

// InvalidateParameters drops the cached parameter list.
func (s *State) InvalidateParameters() { s.cachedParams = nil }

// ParametersCached reports whether a parameter snapshot is held.
func (s *State) ParametersCached() bool { return s.cachedParams != nil }

// RememberConfig stores a resolved config value.
func (s *State) RememberConfig(c *Config, v ConfigValue) {
	s.setConfigs = append(s.setConfigs, c)
	s.configValues[NormalizeName(c.Name)] = v
}

// SetConfigs returns the configs resolved by the pipeline, in order.
func (s *State) SetConfigs() []*Config {
	out := make([]*Config, len(s.setConfigs))
	copy(out, s.setConfigs)
	return out
}

// UseOptions records config options for lazy resolution.
func (s *State) UseOptions(options map[string]any) { s.options = options }
