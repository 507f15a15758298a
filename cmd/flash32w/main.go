// Command flash32w programs STM32W108 radio chips through the USB bridge of
// the STM32W RF Control Kit.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/dmarion/flash32w/bootloader"
	"github.com/dmarion/flash32w/bridge"
	"github.com/dmarion/flash32w/channel"
	"github.com/dmarion/flash32w/config"
	"github.com/dmarion/flash32w/firmware"
	"github.com/dmarion/flash32w/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "flash32w STM32W flasher")
	fmt.Fprintln(stdout)

	opts, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, " ! %v\n", err)
		}
		newFlagSet(stderr).Usage()
		return 1
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, " ! %v\n", err)
		return 1
	}
	applyOverrides(cfg, opts)

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, " ! %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ch, err := openChannel(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, " ! Cannot open bridge: %v\n", err)
		return 1
	}
	defer ch.Close()

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	a := &app{
		cfg:      cfg,
		opts:     opts,
		ch:       ch,
		log:      logger,
		out:      stdout,
		progress: newReporter(stdout, logger, interactive),
	}

	if err := a.dispatch(ctx); err != nil {
		a.progress.abort()
		logger.Error("operation failed", zap.String("action", opts.action), zap.Error(err))
		fmt.Fprintf(stderr, " ! %v\n", err)
		return 1
	}
	return 0
}

func applyOverrides(cfg *config.Config, opts *options) {
	if opts.port != "" {
		cfg.Transport.Kind = "serial"
		cfg.Transport.Port = opts.port
	}
	if opts.trace {
		cfg.Trace = true
	}
	if opts.verify {
		cfg.Flash.Verify = true
	}
	if opts.addressSet && opts.action == actionFlash {
		cfg.Flash.BaseAddress = opts.address
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Trace {
		return logging.SetupLevel(cfg.Log, zap.DebugLevel)
	}
	return logging.Setup(cfg.Log)
}

func openChannel(cfg *config.Config, logger *zap.Logger) (channel.Channel, error) {
	var ch channel.Channel
	switch cfg.Transport.Kind {
	case "serial":
		s, err := channel.OpenSerial(channel.SerialConfig{
			Port:    cfg.Transport.Port,
			Baud:    cfg.Baud.Bridge,
			Timeout: cfg.Transport.Timeout,
		})
		if err != nil {
			return nil, err
		}
		ch = s
	default:
		usbCfg := channel.USBConfig{
			VendorID: uint16(cfg.Transport.VendorID),
			Timeout:  cfg.Transport.Timeout,
		}
		for _, pid := range cfg.Transport.ProductIDs {
			usbCfg.ProductIDs = append(usbCfg.ProductIDs, uint16(pid))
		}
		u, err := channel.OpenUSB(usbCfg)
		if err != nil {
			return nil, err
		}
		ch = u
	}

	if cfg.Trace {
		ch = channel.Trace(ch, logger)
	}
	return ch, nil
}

type app struct {
	cfg      *config.Config
	opts     *options
	ch       channel.Channel
	log      *zap.Logger
	out      io.Writer
	progress *reporter
}

func (a *app) dispatch(ctx context.Context) error {
	switch a.opts.action {
	case actionFlash:
		return a.flash(ctx)
	case actionBridge:
		return a.updateBridge(ctx)
	case actionDump:
		return a.dump(ctx)
	case actionInfo:
		return a.info(ctx)
	default:
		return fmt.Errorf("unknown action %q", a.opts.action)
	}
}

func (a *app) bridgeOptions() []bridge.Option {
	return []bridge.Option{
		bridge.WithLogger(a.log),
		bridge.WithPoll(a.cfg.Retry.Attempts, a.cfg.Retry.Delay),
		bridge.WithHandshakeAttempts(a.cfg.Handshake.Attempts),
		bridge.WithBaudRates(a.cfg.Baud.Bridge, a.cfg.Baud.BridgeBootloader, a.cfg.Baud.Target),
		bridge.WithTransferProgress(a.progress.transfer),
	}
}

func (a *app) programmer(opts ...bootloader.Option) *bootloader.Programmer {
	seq := bridge.NewSequencer(a.ch, a.bridgeOptions()...)
	opts = append([]bootloader.Option{
		bootloader.WithLogger(a.log),
		bootloader.WithProgressCallback(a.progress.flash),
	}, opts...)
	return bootloader.New(a.ch, seq, opts...)
}

func (a *app) flash(ctx context.Context) error {
	img, err := firmware.Open(a.opts.file)
	if err != nil {
		return &bootloader.StepError{Step: bootloader.StepOpen, Err: err}
	}
	defer img.Close()

	fmt.Fprintf(a.out, "Writing %d bytes from %s to flash at 0x%08X\n", img.Size, img.Name, a.cfg.Flash.BaseAddress)

	prog := a.programmer(
		bootloader.WithBaseAddress(a.cfg.Flash.BaseAddress),
		bootloader.WithVerify(a.cfg.Flash.Verify),
	)
	if err := prog.Program(ctx, img); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Done.")
	return nil
}

func (a *app) updateBridge(ctx context.Context) error {
	img, err := firmware.Open(a.opts.file)
	if err != nil {
		return fmt.Errorf("open bridge image: %w", err)
	}
	defer img.Close()

	fmt.Fprintf(a.out, "Sending %s (%d bytes) to the bridge\n", img.Name, img.Size)

	up := bridge.NewUpdater(a.ch, a.bridgeOptions()...)
	if err := up.Update(ctx, img); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Done.")
	return nil
}

func (a *app) dump(ctx context.Context) error {
	data, err := a.programmer().Dump(ctx, a.opts.address, a.opts.length)
	if err != nil {
		return err
	}
	a.progress.finish()
	return writeDump(a.out, a.opts.address, data)
}

func (a *app) info(ctx context.Context) error {
	if err := a.ch.SetBaud(a.cfg.Baud.Bridge); err != nil {
		return fmt.Errorf("bridge baud: %w", err)
	}

	client := bridge.NewClient(a.ch, a.bridgeOptions()...)
	bridgeInfo, err := client.Info()
	if err != nil {
		return fmt.Errorf("bridge info: %w", err)
	}
	code, err := client.CodeType()
	if err != nil {
		return fmt.Errorf("bridge code type: %w", err)
	}
	present, err := client.ApplicationPresent()
	if err != nil {
		return fmt.Errorf("bridge application present: %w", err)
	}

	target, err := a.programmer().Info(ctx)
	if err != nil {
		return err
	}

	writeInfo(a.out, bridgeInfo, code, present, target)
	return nil
}
