package event

// Progress is one parsed progress update line. Fields that could not be
// extracted from the line are left at their zero value; a malformed field
// never suppresses the whole event.
type Progress struct {
	Frame       int64
	FPS         float64
	Q           float64
	SizeKB      int64
	Time        string
	Seconds     float64
	BitrateKbps float64
	Speed       float64
	Raw         string
}

// Snapshot holds the latest cumulative progress for a job. Fields never
// decrease while the job runs: a progress line reporting a smaller value
// (FFmpeg occasionally emits a bogus first sample) leaves the snapshot field
// untouched.
type Snapshot struct {
	Frame       int64
	FPS         float64
	Seconds     float64
	SizeKB      int64
	BitrateKbps float64
	Speed       float64
	Updates     int
}

// Apply folds one progress event into the snapshot.
func (s *Snapshot) Apply(p *Progress) {
	if s == nil || p == nil {
		return
	}
	s.Updates++
	if p.Frame > s.Frame {
		s.Frame = p.Frame
	}
	if p.Seconds > s.Seconds {
		s.Seconds = p.Seconds
	}
	if p.SizeKB > s.SizeKB {
		s.SizeKB = p.SizeKB
	}
	// Rates are instantaneous but still reported cumulatively: keep the
	// latest nonzero reading rather than the maximum.
	if p.FPS > 0 {
		s.FPS = p.FPS
	}
	if p.BitrateKbps > 0 {
		s.BitrateKbps = p.BitrateKbps
	}
	if p.Speed > 0 {
		s.Speed = p.Speed
	}
}
