package bootloader

import (
	"fmt"
)

// Steps named by StepError.
const (
	StepOpen      = "open image"
	StepReadImage = "read image"
	StepBootEntry = "boot entry"
	StepPing      = "ping"
	StepErase     = "erase"
	StepWrite     = "write"
	StepVerify    = "verify"
	StepRead      = "read"
)

// StepError is a fatal orchestration failure. It names the failing step and
// the address and image offset involved.
type StepError struct {
	Step    string
	Address uint32
	Offset  int64
	Size    int
	Err     error
}

func (e *StepError) Error() string {
	switch e.Step {
	case StepWrite, StepVerify:
		return fmt.Sprintf("%s failed at 0x%08X (offset %d): %v", e.Step, e.Address, e.Offset, e.Err)
	case StepRead:
		return fmt.Sprintf("memory read error in %d byte block starting at 0x%08X: %v", e.Size, e.Address, e.Err)
	case StepErase:
		return fmt.Sprintf("erase failed from 0x%08X: %v", e.Address, e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// VerifyError indicates that flash read back differs from the image.
type VerifyError struct {
	Address  uint32
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify mismatch at 0x%08X: expected 0x%02X, got 0x%02X",
		e.Address, e.Expected, e.Actual)
}
