package visualizer

// AnalyzerConfig sets the band boundaries (snapshot indices) and the bass
// smoothing factor. Bass is [0,BassEnd), mid [BassEnd,MidEnd), high
// [MidEnd, min(HighEnd, len)).
type AnalyzerConfig struct {
	BassEnd   int
	MidEnd    int
	HighEnd   int
	Smoothing float64
}

// DefaultAnalyzerConfig returns the 10/50/100 split with α = 0.2.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{BassEnd: 10, MidEnd: 50, HighEnd: 100, Smoothing: 0.2}
}

// BandEnergy is the per-frame energy summary. Bass is smoothed across
// frames; Mid and High are the current frame's values. BassRaw and Delta
// feed transient detection.
type BandEnergy struct {
	Bass    float64
	Mid     float64
	High    float64
	BassRaw float64
	Delta   float64
}

// Analyzer reduces snapshots to band energies. Not safe for concurrent use;
// the frame loop is its only caller.
type Analyzer struct {
	cfg    AnalyzerConfig
	energy BandEnergy
}

// NewAnalyzer creates an analyzer in the silent state.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Update folds one snapshot into the energy state.
func (a *Analyzer) Update(snap Snapshot, sensitivity float64) BandEnergy {
	if sensitivity < 0 {
		sensitivity = 0
	}
	n := len(snap)
	bassRaw := bandMean(snap, 0, min(a.cfg.BassEnd, n)) * sensitivity
	mid := bandMean(snap, a.cfg.BassEnd, min(a.cfg.MidEnd, n)) * sensitivity
	high := bandMean(snap, a.cfg.MidEnd, min(a.cfg.HighEnd, n)) * sensitivity

	prev := a.energy
	a.energy = BandEnergy{
		Bass:    lerp(prev.Bass, bassRaw, a.cfg.Smoothing),
		Mid:     mid,
		High:    high,
		BassRaw: bassRaw,
		Delta:   bassRaw - prev.BassRaw,
	}
	return a.energy
}

// Energy returns the latest state.
func (a *Analyzer) Energy() BandEnergy {
	return a.energy
}

// Reset returns to silence.
func (a *Analyzer) Reset() {
	a.energy = BandEnergy{}
}

// bandMean averages snap[lo:hi] normalized to 0..1. Empty ranges give 0.
func bandMean(snap Snapshot, lo, hi int) float64 {
	if lo < 0 {
		lo = 0
	}
	if hi <= lo {
		return 0
	}
	var sum int
	for _, v := range snap[lo:hi] {
		sum += int(v)
	}
	return float64(sum) / float64(hi-lo) / 255.0
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
