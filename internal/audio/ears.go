package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EARS record layout: a 12-byte header followed by 250 big-endian int16
// samples.
const (
	EARSRecordSize       = 512
	EARSHeaderSize       = 12
	EARSSamplesPerRecord = 250
	EARSSampleRate       = 192000
	earsTickRate         = 32000
)

var (
	earsEpochBuoy    = time.Date(2015, 10, 27, 0, 0, 0, 0, time.UTC)
	earsEpochDefault = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ErrEmptyRecording means a file held no complete EARS record.
var ErrEmptyRecording = errors.New("no complete records")

// IsEARSPath reports whether path has an EARS-style numeric extension such
// as ".190".
func IsEARSPath(path string) bool {
	ext := filepath.Ext(path)
	if len(ext) != 4 {
		return false
	}
	for _, c := range ext[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ReadEARS reads a binary EARS recording.
func ReadEARS(path string) (*Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, decodeError(path, err)
	}
	sig, err := DecodeEARS(filepath.Base(path), data)
	if err != nil {
		return nil, decodeError(path, err)
	}
	return sig, nil
}

// DecodeEARS parses EARS records from memory. The name picks the timestamp
// epoch. A trailing partial record is ignored.
func DecodeEARS(name string, data []byte) (*Signal, error) {
	nRecords := len(data) / EARSRecordSize
	if nRecords == 0 {
		return nil, fmt.Errorf("ears: %w (%d bytes)", ErrEmptyRecording, len(data))
	}

	samples := make([]float64, 0, nRecords*EARSSamplesPerRecord)
	for i := 0; i < nRecords; i++ {
		rec := data[i*EARSRecordSize : (i+1)*EARSRecordSize]
		payload := rec[EARSHeaderSize:]
		for j := 0; j < EARSSamplesPerRecord; j++ {
			v := int16(binary.BigEndian.Uint16(payload[2*j:]))
			samples = append(samples, float64(v))
		}
	}

	return &Signal{
		Samples:    samples,
		SampleRate: EARSSampleRate,
		Duration:   float64(len(samples)) / EARSSampleRate,
		StartTime:  earsTimestamp(name, data[:EARSHeaderSize]),
	}, nil
}

// earsTimestamp converts the 6-byte tick counter at header bytes 6..11.
// The top byte carries a fixed offset of 14 and a scale of 16.
func earsTimestamp(name string, header []byte) time.Time {
	epoch := earsEpochDefault
	if len(name) > 0 && name[0] == '7' {
		epoch = earsEpochBuoy
	}

	s := header[6:12]
	ticks := (float64(s[0])-14)/16*(1<<40) +
		float64(s[1])*(1<<32) +
		float64(s[2])*(1<<24) +
		float64(s[3])*(1<<16) +
		float64(s[4])*(1<<8) +
		float64(s[5])
	seconds := ticks / earsTickRate

	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}
