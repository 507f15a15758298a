package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dmarion/flash32w/bootloader"
	"github.com/dmarion/flash32w/bridge"
	"github.com/dmarion/flash32w/config"
	"github.com/dmarion/flash32w/protocol"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0x08000000", want: 0x08000000},
		{in: "0X10", want: 16},
		{in: "32", want: 32},
		{in: "010", want: 10},
		{in: "0xFFFFFFFF", want: 0xFFFFFFFF},
		{in: "0x100000000", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "0xZZ", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseNumber(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr string
	}{
		{
			name: "flash",
			args: []string{"-f", "app.bin"},
			want: options{action: actionFlash, file: "app.bin", address: defaultAddress, length: defaultDumpLength},
		},
		{
			name: "flash at address with verify",
			args: []string{"--flash=app.bin", "-a", "0x08001000", "--verify"},
			want: options{action: actionFlash, file: "app.bin", address: 0x08001000, addressSet: true, length: defaultDumpLength, verify: true},
		},
		{
			name: "bridge over serial",
			args: []string{"-b", "bridge.bin", "--port", "/dev/ttyACM1", "--trace"},
			want: options{action: actionBridge, file: "bridge.bin", address: defaultAddress, length: defaultDumpLength, port: "/dev/ttyACM1", trace: true},
		},
		{
			name: "dump",
			args: []string{"-d", "-a", "0x08040800", "-l", "256"},
			want: options{action: actionDump, address: 0x08040800, addressSet: true, length: 256},
		},
		{
			name: "info with config",
			args: []string{"-i", "--config", "my.yaml"},
			want: options{action: actionInfo, address: defaultAddress, length: defaultDumpLength, configPath: "my.yaml"},
		},
		{name: "no action", args: nil, wantErr: "usage"},
		{name: "help", args: []string{"-h"}, wantErr: "usage"},
		{name: "two actions", args: []string{"-d", "-i"}, wantErr: "only one action"},
		{name: "flash without file", args: []string{"--flash="}, wantErr: "needs a file"},
		{name: "bad address", args: []string{"-d", "-a", "0xG"}, wantErr: "wrong address"},
		{name: "zero length", args: []string{"-d", "-l", "0"}, wantErr: "wrong length"},
		{name: "stray argument", args: []string{"-i", "extra"}, wantErr: "unexpected argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-f", "a.bin", "-d"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "only one action")
	assert.Contains(t, stderr.String(), "--flash")
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(cfg, &options{
		action:     actionFlash,
		address:    0x08002000,
		addressSet: true,
		port:       "/dev/ttyACM3",
		trace:      true,
		verify:     true,
	})

	assert.Equal(t, "serial", cfg.Transport.Kind)
	assert.Equal(t, "/dev/ttyACM3", cfg.Transport.Port)
	assert.True(t, cfg.Trace)
	assert.True(t, cfg.Flash.Verify)
	assert.Equal(t, uint32(0x08002000), cfg.Flash.BaseAddress)

	cfg = config.Default()
	applyOverrides(cfg, &options{action: actionDump, address: 0x08040800, addressSet: true})
	assert.Equal(t, uint32(0x08000000), cfg.Flash.BaseAddress)
}

func TestWriteDump(t *testing.T) {
	data := []byte("Hello, flash32w!\x00\x01\x02")

	var buf bytes.Buffer
	require.NoError(t, writeDump(&buf, 0x08000000, data))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "08000000: 48 65 6c 6c 6f 2c 20 66  6c 61 73 68 33 32 77 21  Hello, flash32w!", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "08000010: 00 01 02 "))
	assert.True(t, strings.HasSuffix(lines[1], " ..."))
	assert.Equal(t, len(lines[0])-13, len(lines[1]))
}

func TestWriteInfo(t *testing.T) {
	bi := &bridge.Info{BootloaderVersion: 0x01000002, ApplicationVersion: 0x02010000}
	ti := &bootloader.TargetInfo{
		BootloaderVersion: 0x22,
		DeviceType:        0x0413,
		BurnedEUI64:       bootloader.EUI64{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		Manufacturer:      "Acme",
		ReadProtection:    bootloader.ReadProtectionInactive,
		WriteProtection:   0xFFFFFFFF,
		PHYConfig:         [2]byte{0xFD, 0xFF},
	}

	var buf bytes.Buffer
	writeInfo(&buf, bi, protocol.CodeTypeApplication, true, ti)
	out := buf.String()

	assert.Contains(t, out, "Device Type:")
	assert.Contains(t, out, "0x0413")
	assert.Contains(t, out, "08:07:06:05:04:03:02:01")
	assert.Contains(t, out, "0xa5 (inactive)")
	assert.Contains(t, out, "nnnnnnnn nnnnnnnn nnnnnnnn nnnnnnnn")
	assert.Contains(t, out, "application")
	assert.Contains(t, out, "fd ff")
}

func TestReporterLogsWhenNotInteractive(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newReporter(io.Discard, zap.New(core), false)

	r.flash(bootloader.Progress{Phase: bootloader.PhaseErasing, Address: 0x08000000, TotalBytes: 512})
	r.flash(bootloader.Progress{Phase: bootloader.PhaseWriting, Address: 0x08000000, BytesDone: 256, TotalBytes: 512})
	r.flash(bootloader.Progress{Phase: bootloader.PhaseWriting, Address: 0x08000100, BytesDone: 512, TotalBytes: 512})
	r.flash(bootloader.Progress{Phase: bootloader.PhaseComplete, Address: 0x08000000, BytesDone: 512, TotalBytes: 512})

	var phases []string
	for _, e := range logs.All() {
		phases = append(phases, e.Message)
	}
	assert.Equal(t, []string{"erasing", "writing", "complete"}, phases)
}

func TestReporterBar(t *testing.T) {
	var buf bytes.Buffer
	r := newReporter(&buf, zap.NewNop(), true)

	r.flash(bootloader.Progress{Phase: bootloader.PhaseErasing, TotalBytes: 512})
	r.flash(bootloader.Progress{Phase: bootloader.PhaseWriting, BytesDone: 256, TotalBytes: 512})
	require.NotNil(t, r.bar)
	r.flash(bootloader.Progress{Phase: bootloader.PhaseComplete, BytesDone: 512, TotalBytes: 512})

	assert.Nil(t, r.bar)
	assert.Contains(t, buf.String(), "Erasing...")
}
