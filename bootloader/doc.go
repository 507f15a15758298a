// Package bootloader programs the target radio chip through its ROM bootloader.
//
// # Overview
//
// Device speaks the ROM bootloader protocol (ping, get, get-id, read, write,
// erase). Programmer orchestrates complete operations on top of it:
//   - Resetting the target into its ROM bootloader through the bridge
//   - Erasing the pages the image will occupy
//   - Writing the image in 256-byte chunks, the last one padded with 0xFF
//   - Optionally reading the image back and comparing it
//   - Collecting chip identification and dumping memory
//
// # Basic Usage
//
//	ch, err := channel.OpenUSB(channel.DefaultUSBConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
//
//	img, err := firmware.Open("app.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer img.Close()
//
//	prog := bootloader.New(ch, bridge.NewSequencer(ch))
//	if err := prog.Program(context.Background(), img); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	prog := bootloader.New(ch, seq,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] 0x%08X %.1f%%\n", p.Phase, p.Address, p.Percentage)
//	    }),
//	)
//
// # Configuration Options
//
//	prog := bootloader.New(ch, seq,
//	    bootloader.WithLogger(logger),
//	    bootloader.WithBaseAddress(0x08000000),
//	    bootloader.WithVerify(true),
//	)
//
// # Error Handling
//
// Fatal orchestration failures are *StepError values naming the failing
// step and the address or image offset involved. Read-back mismatches wrap
// a *VerifyError. The underlying kind is always reachable with errors.Is:
//
//	var stepErr *bootloader.StepError
//	if errors.As(err, &stepErr) && errors.Is(err, protocol.ErrProtocolViolation) {
//	    fmt.Printf("%s rejected at 0x%08X\n", stepErr.Step, stepErr.Address)
//	}
//
// A failed run leaves partially erased or written flash as is.
package bootloader
