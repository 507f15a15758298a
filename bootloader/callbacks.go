package bootloader

import "time"

// Programming phases reported in Progress.Phase.
const (
	PhaseEntering  = "entering"
	PhaseErasing   = "erasing"
	PhaseWriting   = "writing"
	PhaseVerifying = "verifying"
	PhaseReading   = "reading"
	PhaseComplete  = "complete"
)

// Progress contains information about the programming progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase describes the current operation phase:
	//   "entering"  - Resetting the target into its ROM bootloader
	//   "erasing"   - Erasing flash pages
	//   "writing"   - Writing flash chunks
	//   "verifying" - Reading the image back
	//   "reading"   - Dumping memory
	//   "complete"  - Operation completed successfully
	Phase string

	// Address is the target address of the last completed transfer
	Address uint32

	// BytesDone is the number of image bytes processed so far
	BytesDone int64

	// TotalBytes is the image size
	TotalBytes int64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the operation started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during programming to report progress.
// Implementations should return quickly to avoid blocking the programming operation.
//
// Example:
//
//	prog := bootloader.New(ch, seq,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] 0x%08X %.1f%%\n", p.Phase, p.Address, p.Percentage)
//	    }),
//	)
type ProgressCallback func(Progress)
