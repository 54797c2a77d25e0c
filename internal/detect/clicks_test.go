package detect

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/himanishpuri/dolphain/pkg/models"
)

const clickFs = 192000.0

// clickSignal places short 60 kHz Gaussian tone bursts at the given sample
// offsets on a quiet noise floor.
func clickSignal(n int, offsets []int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, n)
	for i := range x {
		x[i] = 1e-4 * r.NormFloat64()
	}
	const sigma = 20.0
	for _, c := range offsets {
		for i := -100; i <= 100; i++ {
			j := c + i
			if j < 0 || j >= n {
				continue
			}
			g := math.Exp(-float64(i*i) / (2 * sigma * sigma))
			x[j] += g * math.Sin(2*math.Pi*60000*float64(i)/clickFs)
		}
	}
	return x
}

func regularOffsets(first, count, spacing int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = first + i*spacing
	}
	return out
}

func TestDetectClickTrainRegular(t *testing.T) {
	x := clickSignal(int(2*clickFs), regularOffsets(20000, 20, 4800), 1)

	det, err := DetectClicks(x, clickFs, DefaultClickParams())
	if err != nil {
		t.Fatalf("DetectClicks: %v", err)
	}
	if len(det.Clicks) != 20 {
		t.Fatalf("Expected 20 clicks, got %d", len(det.Clicks))
	}
	if len(det.Trains) != 1 {
		t.Fatalf("Expected 1 train, got %d", len(det.Trains))
	}

	train := det.Trains[0]
	if train.NClicks != 20 || len(train.Clicks) != 20 {
		t.Errorf("Expected 20 clicks in train, got %d", train.NClicks)
	}
	if train.RegularityCV > 0.05 {
		t.Errorf("Expected CV close to 0, got %f", train.RegularityCV)
	}
	if math.Abs(train.ICIMean-0.025) > 1e-4 {
		t.Errorf("Expected mean ICI 25 ms, got %f", train.ICIMean)
	}
	if math.Abs(train.StartTime-20000/clickFs) > 1e-3 {
		t.Errorf("unexpected start time %f", train.StartTime)
	}
	if train.ClickRate < 39 || train.ClickRate > 43 {
		t.Errorf("unexpected click rate %f", train.ClickRate)
	}
}

// impulseSignal places unit single-sample impulses on a quiet noise floor.
func impulseSignal(n int, offsets []int, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, n)
	for i := range x {
		x[i] = 1e-4 * r.NormFloat64()
	}
	for _, c := range offsets {
		x[c] += 1
	}
	return x
}

// alternatingOffsets starts at first and alternates steps a and b.
func alternatingOffsets(first, count, a, b int) []int {
	out := []int{first}
	for i := 1; i < count; i++ {
		step := a
		if i%2 == 0 {
			step = b
		}
		out = append(out, out[i-1]+step)
	}
	return out
}

func TestDetectClickTrainImpulses(t *testing.T) {
	x := impulseSignal(int(2*clickFs), regularOffsets(20000, 20, 4800), 11)

	trains, err := DetectClickTrains(x, clickFs, DefaultClickParams())
	if err != nil {
		t.Fatalf("DetectClickTrains: %v", err)
	}
	if len(trains) != 1 {
		t.Fatalf("Expected 1 train, got %d", len(trains))
	}
	if trains[0].NClicks != 20 {
		t.Errorf("Expected 20 clicks, got %d", trains[0].NClicks)
	}
	if trains[0].RegularityCV > 0.05 {
		t.Errorf("Expected CV close to 0, got %f", trains[0].RegularityCV)
	}
	if math.Abs(trains[0].ICIMean-0.025) > 1e-4 {
		t.Errorf("Expected mean ICI 25 ms, got %f", trains[0].ICIMean)
	}
}

func TestDetectClickTrainsRegularityBoundary(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int // alternating intervals in samples
		wantCV float64
		accept bool
	}{
		// 20 ms / 44 ms: CV = 24/64
		{"cv 0.375 accepted", 3840, 8448, 0.375, true},
		// 10 ms / 40 ms: CV = 30/50
		{"cv 0.6 rejected", 1920, 7680, 0.6, false},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offsets := alternatingOffsets(20000, 21, tt.a, tt.b)
			x := clickSignal(int(2*clickFs), offsets, uint64(20+i))

			det, err := DetectClicks(x, clickFs, DefaultClickParams())
			if err != nil {
				t.Fatalf("DetectClicks: %v", err)
			}
			if len(det.Clicks) != len(offsets) {
				t.Fatalf("Expected %d clicks, got %d", len(offsets), len(det.Clicks))
			}
			if tt.accept != (len(det.Trains) == 1) {
				t.Fatalf("accept = %v, got %d trains", tt.accept, len(det.Trains))
			}
			if tt.accept && math.Abs(det.Trains[0].RegularityCV-tt.wantCV) > 0.01 {
				t.Errorf("CV = %f, want %f", det.Trains[0].RegularityCV, tt.wantCV)
			}
		})
	}
}

func TestClickParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ClickParams)
		valid  bool
	}{
		{"defaults", func(p *ClickParams) {}, true},
		{"order 8", func(p *ClickParams) { p.FilterOrder = 8 }, true},
		{"odd order", func(p *ClickParams) { p.FilterOrder = 7 }, false},
		{"order below 6", func(p *ClickParams) { p.FilterOrder = 4 }, false},
		{"inverted band", func(p *ClickParams) { p.BandHighHz = p.BandLowHz / 2 }, false},
		{"single click trains", func(p *ClickParams) { p.MinClicks = 1 }, false},
		{"zero max cv", func(p *ClickParams) { p.MaxCV = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultClickParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("expected an error")
				}
				// the detector refuses the same tuning before touching samples
				var detErr *models.DetectionError
				if _, err := DetectClicks(make([]float64, 1000), clickFs, p); !errors.As(err, &detErr) {
					t.Errorf("expected DetectionError from DetectClicks, got %v", err)
				}
			}
		})
	}
}

func TestDetectClickTrainsIrregularRejected(t *testing.T) {
	// alternating 10 ms / 40 ms intervals: CV = 0.6
	offsets := []int{20000}
	for i := 1; i < 21; i++ {
		step := 1920
		if i%2 == 0 {
			step = 7680
		}
		offsets = append(offsets, offsets[i-1]+step)
	}
	x := clickSignal(int(2*clickFs), offsets, 2)

	det, err := DetectClicks(x, clickFs, DefaultClickParams())
	if err != nil {
		t.Fatalf("DetectClicks: %v", err)
	}
	if len(det.Clicks) != len(offsets) {
		t.Fatalf("Expected %d clicks, got %d", len(offsets), len(det.Clicks))
	}
	if len(det.Trains) != 0 {
		t.Errorf("irregular train should be rejected, got CV %f", det.Trains[0].RegularityCV)
	}
}

func TestDetectClickTrainsTooFewClicks(t *testing.T) {
	x := clickSignal(int(clickFs), regularOffsets(10000, 8, 4800), 3)

	trains, err := DetectClickTrains(x, clickFs, DefaultClickParams())
	if err != nil {
		t.Fatalf("DetectClickTrains: %v", err)
	}
	if len(trains) != 0 {
		t.Errorf("8 clicks must not form a train, got %d", len(trains))
	}
}

func TestDetectClickTrainsWhiteNoise(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 10))
	x := make([]float64, int(clickFs))
	for i := range x {
		x[i] = r.NormFloat64()
	}

	trains, err := DetectClickTrains(x, clickFs, DefaultClickParams())
	if err != nil {
		t.Fatalf("DetectClickTrains: %v", err)
	}
	if len(trains) != 0 {
		t.Errorf("Expected no trains in white noise, got %d", len(trains))
	}
}

func TestDetectClicksEdgeCases(t *testing.T) {
	p := DefaultClickParams()

	det, err := DetectClicks(make([]float64, 1000), 32000, p)
	if err != nil || len(det.Clicks) != 0 {
		t.Errorf("band above Nyquist: got %+v, %v", det, err)
	}

	det, err = DetectClicks(make([]float64, 10000), clickFs, p)
	if err != nil || len(det.Clicks) != 0 || len(det.Trains) != 0 {
		t.Errorf("silent signal: got %+v, %v", det, err)
	}

	var detErr *models.DetectionError
	if _, err := DetectClicks(make([]float64, 100), -1, p); !errors.As(err, &detErr) {
		t.Errorf("negative rate: expected DetectionError, got %v", err)
	}
	bad := make([]float64, 100)
	bad[0] = math.NaN()
	if _, err := DetectClicks(bad, clickFs, p); !errors.As(err, &detErr) {
		t.Errorf("NaN input: expected DetectionError, got %v", err)
	}
}

func TestGroupClicks(t *testing.T) {
	times := []float64{0, 0.01, 0.02, 0.2, 0.21, 0.5}
	clicks := make([]models.ClickEvent, len(times))
	for i, tm := range times {
		clicks[i] = models.ClickEvent{Time: tm, Amplitude: 1}
	}

	groups := GroupClicks(clicks, 0.05)
	expected := []int{3, 2, 1}
	if len(groups) != len(expected) {
		t.Fatalf("Expected %d groups, got %d", len(expected), len(groups))
	}
	for i, g := range groups {
		if len(g) != expected[i] {
			t.Errorf("group %d has %d clicks, expected %d", i, len(g), expected[i])
		}
	}

	if GroupClicks(nil, 0.05) != nil {
		t.Error("no clicks should give no groups")
	}
}

func TestNewClickTrain(t *testing.T) {
	if _, ok := NewClickTrain([]models.ClickEvent{{Time: 1}}); ok {
		t.Error("a single click must not form a train")
	}

	clicks := []models.ClickEvent{{Time: 0}, {Time: 0.01}, {Time: 0.05}}
	train, ok := NewClickTrain(clicks)
	if !ok {
		t.Fatal("expected a train")
	}
	// ICIs 0.01 and 0.04
	if math.Abs(train.ICIMean-0.025) > 1e-12 {
		t.Errorf("mean ICI %f", train.ICIMean)
	}
	if math.Abs(train.ICIStd-0.015) > 1e-12 {
		t.Errorf("ICI std %f", train.ICIStd)
	}
	if math.Abs(train.RegularityCV-0.6) > 1e-9 {
		t.Errorf("CV %f", train.RegularityCV)
	}
	if math.Abs(train.ClickRate-60) > 1e-9 {
		t.Errorf("click rate %f", train.ClickRate)
	}

	clicks[0].Time = 99
	if train.Clicks[0].Time != 0 {
		t.Error("train aliases its input")
	}
}
