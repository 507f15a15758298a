// Package bridge talks to the USB-to-serial bridge controller that sits in
// front of the target radio chip.
//
// The bridge selects its mode from the line rate: at 50 baud it accepts
// fixed-frame control commands, at 10 baud its own bootloader listens, and
// any other rate passes bytes through to the target.
//
// # Control commands
//
//	c := bridge.NewClient(ch)
//	info, err := c.Info()
//	fmt.Println(info.BootloaderVersion, info.ApplicationVersion)
//
// # Boot entry
//
// Sequencer drives the target's nRESET and nBOOTMODE lines so that it starts
// in its ROM bootloader:
//
//	seq := bridge.NewSequencer(ch, bridge.WithLogger(logger))
//	if err := seq.ResetIntoBootloader(ctx, nil); err != nil {
//	    return err
//	}
//
// # Bridge firmware update
//
// Updater switches the bridge into its own bootloader and pushes a new
// image over YMODEM:
//
//	up := bridge.NewUpdater(ch, bridge.WithTransferProgress(func(p ymodem.Progress) {
//	    fmt.Printf("\r%d/%d", p.BytesSent, p.TotalBytes)
//	}))
//	err := up.Update(ctx, img)
package bridge
