package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/dmarion/flash32w/bootloader"
	"github.com/dmarion/flash32w/bridge"
	"github.com/dmarion/flash32w/protocol"
	"github.com/dmarion/flash32w/ymodem"
)

// reporter renders progress as a bar on a terminal and as log lines
// otherwise.
type reporter struct {
	out         io.Writer
	log         *zap.Logger
	interactive bool

	phase string
	bar   *progressbar.ProgressBar
}

func newReporter(out io.Writer, log *zap.Logger, interactive bool) *reporter {
	return &reporter{out: out, log: log, interactive: interactive}
}

func (r *reporter) flash(p bootloader.Progress) {
	if !r.interactive {
		if p.Phase != r.phase {
			r.log.Info(p.Phase, zap.String("address", fmt.Sprintf("0x%08X", p.Address)), zap.Int64("total", p.TotalBytes))
			r.phase = p.Phase
		}
		r.log.Debug("progress",
			zap.String("phase", p.Phase),
			zap.String("address", fmt.Sprintf("0x%08X", p.Address)),
			zap.Int64("done", p.BytesDone),
			zap.Float64("percent", p.Percentage),
		)
		return
	}

	switch p.Phase {
	case bootloader.PhaseEntering, bootloader.PhaseErasing:
		r.finish()
		fmt.Fprintf(r.out, "%s...\n", strings.ToUpper(p.Phase[:1])+p.Phase[1:])
		r.phase = p.Phase
	case bootloader.PhaseComplete:
		r.finish()
	default:
		r.update(p.Phase, p.BytesDone, p.TotalBytes)
	}
}

func (r *reporter) transfer(p ymodem.Progress) {
	if !r.interactive {
		r.log.Debug("transfer",
			zap.Int("block", p.Block),
			zap.Int64("sent", p.BytesSent),
			zap.Float64("percent", p.Percentage),
		)
		return
	}
	r.update("sending", p.BytesSent, p.TotalBytes)
	if p.BytesSent >= p.TotalBytes {
		r.finish()
	}
}

func (r *reporter) update(phase string, done, total int64) {
	if r.bar == nil || phase != r.phase {
		r.finish()
		r.phase = phase
		r.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(fmt.Sprintf("%-9s", strings.ToUpper(phase[:1])+phase[1:])),
			progressbar.OptionShowBytes(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.out) }),
		)
	}
	_ = r.bar.Set64(done)
}

// finish completes the current bar, if any.
func (r *reporter) finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// abort leaves the current bar where it stopped.
func (r *reporter) abort() {
	if r.bar != nil {
		_ = r.bar.Exit()
		fmt.Fprintln(r.out)
		r.bar = nil
	}
}

// writeDump prints data as 16-byte lines prefixed with their address,
// followed by the printable characters.
func writeDump(w io.Writer, addr uint32, data []byte) error {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		line := data[off:min(off+16, len(data))]

		fmt.Fprintf(&b, "%08x: ", addr+uint32(off))
		for i := 0; i < 16; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteByte(' ')
		for _, c := range line {
			if c < 0x20 || c > 0x7E {
				c = '.'
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeInfo(w io.Writer, bi *bridge.Info, code byte, appPresent bool, ti *bootloader.TargetInfo) {
	row := func(label, format string, args ...any) {
		fmt.Fprintf(w, " %-32s %s\n", label, fmt.Sprintf(format, args...))
	}

	fmt.Fprintln(w, "STM32F103 bridge information:")
	row("Bootloader Version:", "%s", bi.BootloaderVersion)
	row("Firmware Version:", "%s", bi.ApplicationVersion)
	row("Running:", "%s", codeTypeName(code))
	row("Application Present:", "%s", yesNo(appPresent))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "STM32W108 device information:")
	row("BootLoader Version:", "%d", ti.BootloaderVersion)
	row("Device Type:", "0x%04x", ti.DeviceType)
	row("Burned-in EUI-64 address:", "%s", ti.BurnedEUI64)
	row("CIB EUI-64 address:", "%s", ti.CIBEUI64)
	row("CIB Manufacturer String:", "%s", ti.Manufacturer)
	row("CIB Manufacturer Board Name:", "%s", ti.BoardName)

	protection := "inactive"
	if ti.ReadProtected() {
		protection = "active"
	}
	row("CIB Read Protection:", "0x%02x (%s)", ti.ReadProtection, protection)
	row("CIB Write Protection (pg 0-63):", "%s", ti.WriteProtectionMap())
	row("CIB PHY Config:", "%02x %02x", ti.PHYConfig[0], ti.PHYConfig[1])
	fmt.Fprintln(w)
}

func codeTypeName(code byte) string {
	switch code {
	case protocol.CodeTypeBootloader:
		return "bootloader"
	case protocol.CodeTypeApplication:
		return "application"
	default:
		return fmt.Sprintf("unknown (%d)", code)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
