package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"
)

// Actions selected on the command line.
const (
	actionFlash  = "flash"
	actionBridge = "bridge"
	actionDump   = "dump"
	actionInfo   = "info"
)

const (
	defaultAddress    = 0x08000000
	defaultDumpLength = 32
)

var errUsage = errors.New("usage")

type options struct {
	action string
	file   string

	address    uint32
	addressSet bool
	length     int

	configPath string
	port       string
	trace      bool
	verify     bool
}

func newFlagSet(out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("flash32w", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: flash32w <action> [options]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Exactly one action:")
		fmt.Fprintln(out, "  -f, --flash FILE     write an application image to the target flash")
		fmt.Fprintln(out, "  -b, --bridge FILE    write new firmware to the USB bridge")
		fmt.Fprintln(out, "  -d, --dump           dump target memory (see -a, -l)")
		fmt.Fprintln(out, "  -i, --info           show bridge and target information")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Options:")
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs reads the command line. Exactly one action must be given;
// addresses and lengths accept decimal or 0x-prefixed hex.
func parseArgs(args []string, out io.Writer) (*options, error) {
	var (
		flashFile, bridgeFile string
		dump, info            bool
		address, length       string
		opts                  options
	)

	fs := newFlagSet(out)
	fs.StringVarP(&flashFile, "flash", "f", "", "Application image to write to the target.")
	fs.StringVarP(&bridgeFile, "bridge", "b", "", "Firmware image to write to the bridge.")
	fs.BoolVarP(&dump, "dump", "d", false, "Dump target memory.")
	fs.BoolVarP(&info, "info", "i", false, "Show bridge and target information.")
	fs.StringVarP(&address, "address", "a", "", "Start address for --flash and --dump (default 0x08000000).")
	fs.StringVarP(&length, "length", "l", "", "Number of bytes for --dump (default 32).")
	fs.StringVar(&opts.configPath, "config", "", "Path to a flash32w.yaml configuration file.")
	fs.StringVar(&opts.port, "port", "", "Use the serial transport on this tty instead of USB.")
	fs.BoolVar(&opts.trace, "trace", false, "Log every transfer as hex.")
	fs.BoolVar(&opts.verify, "verify", false, "Read the image back after --flash.")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errUsage
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	var chosen []string
	if fs.Changed("flash") {
		chosen = append(chosen, actionFlash)
		opts.file = flashFile
	}
	if fs.Changed("bridge") {
		chosen = append(chosen, actionBridge)
		opts.file = bridgeFile
	}
	if dump {
		chosen = append(chosen, actionDump)
	}
	if info {
		chosen = append(chosen, actionInfo)
	}
	switch len(chosen) {
	case 0:
		return nil, errUsage
	case 1:
		opts.action = chosen[0]
	default:
		return nil, fmt.Errorf("please specify only one action, got %s", strings.Join(chosen, ", "))
	}
	if opts.file == "" && (opts.action == actionFlash || opts.action == actionBridge) {
		return nil, fmt.Errorf("--%s needs a file", opts.action)
	}

	opts.address = defaultAddress
	if address != "" {
		v, err := parseNumber(address)
		if err != nil {
			return nil, fmt.Errorf("wrong address value: %w", err)
		}
		opts.address = uint32(v)
		opts.addressSet = true
	}

	opts.length = defaultDumpLength
	if length != "" {
		v, err := parseNumber(length)
		if err != nil {
			return nil, fmt.Errorf("wrong length value: %w", err)
		}
		if v == 0 {
			return nil, fmt.Errorf("wrong length value: must be positive")
		}
		opts.length = int(v)
	}

	return &opts, nil
}

// parseNumber accepts a 32-bit value as decimal or 0x-prefixed hex.
func parseNumber(s string) (uint64, error) {
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		return strconv.ParseUint(hex, 16, 32)
	}
	return strconv.ParseUint(s, 10, 32)
}
