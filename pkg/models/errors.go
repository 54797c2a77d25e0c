package models

import "fmt"

// DecodeError means an audio file could not be read or is corrupt.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DetectionError is a numerical failure inside denoising or detection.
type DetectionError struct {
	Stage string
	Err   error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// CheckpointError is a failure to write or parse the checkpoint file.
type CheckpointError struct {
	Op   string // "read", "write", "decode", "delete"
	Path string
	Err  error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
