package metrics

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSimulation forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSimulation(ev SimulationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSimulation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordRejection forwards rejections to sinks supporting them.
func (m *MultiSink) RecordRejection(ev RejectionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RejectionRecorder); ok {
			if err := rec.RecordRejection(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStoreError forwards persistence failures to sinks supporting them.
func (m *MultiSink) RecordStoreError(ev StoreErrorEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StoreErrorRecorder); ok {
			if err := rec.RecordStoreError(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
