package models

// IndexedFile is a file result as returned by the cross-run results index.
type IndexedFile struct {
	RunID        string
	Path         string
	Filename     string
	Score        float64
	NChirps      int
	NClickTrains int
	TotalClicks  int
	MaxSweepHz   float64
	SNRDB        float64
	Error        string
}
