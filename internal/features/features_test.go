package features

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/himanishpuri/dolphain/pkg/models"
)

func clicksAt(times ...float64) []models.ClickEvent {
	out := make([]models.ClickEvent, len(times))
	for i, t := range times {
		out[i] = models.ClickEvent{Time: t, Amplitude: 1}
	}
	return out
}

func timesFromICIs(icis []float64) []float64 {
	times := []float64{0}
	for _, d := range icis {
		times = append(times, times[len(times)-1]+d)
	}
	return times
}

func TestClickPatternsTooFew(t *testing.T) {
	if p := ClickPatterns(clicksAt(0, 0.1, 0.2, 0.3)); p != nil {
		t.Errorf("expected nil for 4 clicks, got %+v", p)
	}
}

func TestClickPatternsRegular(t *testing.T) {
	times := make([]float64, 20)
	for i := range times {
		times[i] = float64(i) / 32
	}
	p := ClickPatterns(clicksAt(times...))
	if p == nil {
		t.Fatal("expected patterns")
	}
	if p.TotalClicks != 20 {
		t.Errorf("TotalClicks = %d", p.TotalClicks)
	}
	if p.RegularityCV == nil || *p.RegularityCV != 0 {
		t.Fatalf("expected CV 0, got %v", p.RegularityCV)
	}
	if !p.HighlyRegular {
		t.Error("expected highly regular")
	}
	if p.ICIModes == nil || *p.ICIModes != 1 {
		t.Errorf("expected one ICI mode, got %v", p.ICIModes)
	}
	if p.Bimodal || p.Accelerating || p.Decelerating {
		t.Errorf("unexpected pattern flags: %+v", p)
	}
	if p.ICIRange != 0 || p.MeanICI != 1.0/32 {
		t.Errorf("unexpected ICI stats: mean %f range %f", p.MeanICI, p.ICIRange)
	}
}

func TestClickPatternsBimodal(t *testing.T) {
	icis := make([]float64, 20)
	for i := range icis {
		icis[i] = 0.01
		if i%2 == 1 {
			icis[i] = 0.04
		}
	}
	p := ClickPatterns(clicksAt(timesFromICIs(icis)...))
	if p == nil {
		t.Fatal("expected patterns")
	}
	if p.ICIModes == nil || *p.ICIModes != 2 || !p.Bimodal {
		t.Errorf("expected bimodal intervals, got modes %v", p.ICIModes)
	}
	if p.HighlyRegular {
		t.Error("alternating intervals are not highly regular")
	}
	if math.Abs(*p.RegularityCV-0.6) > 1e-9 {
		t.Errorf("CV = %f, expected 0.6", *p.RegularityCV)
	}
	if math.Abs(p.ICIRange-0.03) > 1e-12 {
		t.Errorf("ICIRange = %f", p.ICIRange)
	}
}

func TestClickPatternsTempo(t *testing.T) {
	shrinking := make([]float64, 12)
	for i := range shrinking {
		shrinking[i] = 0.04 - 0.002*float64(i)
	}
	p := ClickPatterns(clicksAt(timesFromICIs(shrinking)...))
	if !p.Accelerating || p.Decelerating {
		t.Errorf("shrinking intervals should accelerate: %+v", p)
	}

	growing := make([]float64, 12)
	for i := range growing {
		growing[i] = 0.004 + 0.002*float64(i)
	}
	p = ClickPatterns(clicksAt(timesFromICIs(growing)...))
	if p.Accelerating || !p.Decelerating {
		t.Errorf("growing intervals should decelerate: %+v", p)
	}
	// 0.004 is the only interval under 5 ms
	if p.BurstClicks != 1 {
		t.Errorf("BurstClicks = %d, expected 1", p.BurstClicks)
	}
}

func TestClickPatternsFewIntervals(t *testing.T) {
	p := ClickPatterns(clicksAt(0, 0.01, 0.02, 0.03, 0.04))
	if p == nil {
		t.Fatal("expected patterns")
	}
	if p.RegularityCV == nil {
		t.Error("4 intervals should give a CV")
	}
	if p.ICIModes != nil {
		t.Error("4 intervals are too few for a histogram")
	}
	if p.Accelerating || p.Decelerating {
		t.Error("4 intervals are too few for a tempo trend")
	}
}

func noise(n int, sigma float64, seed uint64) []float64 {
	r := rand.New(rand.NewPCG(seed, seed*7+1))
	x := make([]float64, n)
	for i := range x {
		x[i] = sigma * r.NormFloat64()
	}
	return x
}

func TestSNR(t *testing.T) {
	const fs = 96000.0

	if snr := SNR(noise(int(fs), 1, 1), fs); math.Abs(snr) > 1 {
		t.Errorf("white noise SNR %.2f dB, expected about 0", snr)
	}

	x := noise(int(fs), 0.01, 2)
	for i := range x {
		x[i] += math.Sin(2 * math.Pi * 12000 * float64(i) / fs)
	}
	if snr := SNR(x, fs); snr < 20 {
		t.Errorf("tone SNR %.2f dB, expected > 20", snr)
	}

	if snr := SNR(x, 4000); snr != 0 {
		t.Errorf("bands above Nyquist should give 0, got %f", snr)
	}
}

func TestSpectralShortSignal(t *testing.T) {
	m, err := Spectral(make([]float64, 100), 96000)
	if err != nil || m != nil {
		t.Errorf("expected nil metrics, got %+v, %v", m, err)
	}
}

func TestSpectralSilence(t *testing.T) {
	m, err := Spectral(make([]float64, 32768), 96000)
	if err != nil {
		t.Fatal(err)
	}
	if m.ActiveBands != 0 || m.MaxSimultaneous != 0 || m.HarmonicEvents != 0 || m.PeakFreqRange != 0 {
		t.Errorf("silence should have no activity: %+v", m)
	}
	if m.SpectralEntropy != 0 {
		t.Errorf("silence entropy %f", m.SpectralEntropy)
	}
}

func TestSpectralHarmonics(t *testing.T) {
	const fs = 96000.0
	x := noise(int(fs), 0.001, 3)
	for i := range x {
		tm := float64(i) / fs
		x[i] += math.Sin(2*math.Pi*5000*tm) + 0.5*math.Sin(2*math.Pi*10000*tm)
	}

	m, err := Spectral(x, fs)
	if err != nil {
		t.Fatal(err)
	}
	if m.HarmonicEvents < 5 {
		t.Errorf("expected harmonic events, got %d", m.HarmonicEvents)
	}
	if m.MaxSimultaneous != 2 {
		t.Errorf("expected 2 simultaneous signals, got %d", m.MaxSimultaneous)
	}
	if m.SimultaneousEvents == 0 {
		t.Error("expected simultaneous events")
	}

	white, err := Spectral(noise(int(fs), 1, 4), fs)
	if err != nil {
		t.Fatal(err)
	}
	if white.SpectralEntropy <= m.SpectralEntropy {
		t.Errorf("noise entropy %f should exceed tonal entropy %f", white.SpectralEntropy, m.SpectralEntropy)
	}
	if white.HarmonicEvents != 0 || white.MaxSimultaneous != 0 {
		t.Errorf("noise should not look structured: %+v", white)
	}
}

func TestSpectralActiveBands(t *testing.T) {
	const fs = 96000.0
	// loud first half, 40 dB quieter second half
	x := noise(int(fs), 1, 5)
	for i := len(x) / 2; i < len(x); i++ {
		x[i] *= 0.01
	}

	m, err := Spectral(x, fs)
	if err != nil {
		t.Fatal(err)
	}
	// ultra_high lies above Nyquist
	if m.ActiveBands != 4 {
		t.Errorf("expected 4 active bands, got %d: %v", m.ActiveBands, m.BandEnergies)
	}
	if _, ok := m.BandEnergies["ultra_high"]; ok {
		t.Error("ultra_high cannot be active at 96 kHz")
	}
}
