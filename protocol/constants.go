package protocol

// Bridge command frame markers.
const (
	// BridgeRequestMarker starts every frame sent to the bridge controller (0xAA)
	BridgeRequestMarker = 0xAA

	// BridgeResponseMarker starts every frame received from the bridge controller (0xBB)
	BridgeResponseMarker = 0xBB

	// BridgeTerminator ends every bridge frame in both directions (0x55)
	BridgeTerminator = 0x55

	// BridgeFrameOverhead is marker(1) + argc(1) + terminator(1)
	BridgeFrameOverhead = 3
)

// Bridge command opcodes.
const (
	// BridgeSetReset drives the target nRESET line
	BridgeSetReset = 0

	// BridgeSetBootMode drives the target nBOOTMODE line
	BridgeSetBootMode = 1

	// BridgeGetCodeType reports whether the bridge runs its bootloader (0) or application (1)
	BridgeGetCodeType = 2

	// BridgeGetAppVersion reports the bridge application version (4 bytes)
	BridgeGetAppVersion = 3

	// BridgeIsAppPresent reports whether a valid bridge application is installed
	BridgeIsAppPresent = 4

	// BridgeDownloadImage starts a YMODEM download of a new bridge application
	BridgeDownloadImage = 5

	// BridgeRunApplication starts the bridge application
	BridgeRunApplication = 6

	// BridgeRunBootloader restarts the bridge into its bootloader
	BridgeRunBootloader = 7

	// BridgeUploadImage reads back the bridge application image
	BridgeUploadImage = 8

	// BridgeGetBootloaderVersion reports the bridge bootloader version (4 bytes)
	BridgeGetBootloaderVersion = 9

	// BridgeDownloadBootloaderImage starts a YMODEM download of a new bridge bootloader
	BridgeDownloadBootloaderImage = 10

	// BridgeIsBootloaderOld reports whether the bridge bootloader is outdated
	BridgeIsBootloaderOld = 11

	// BridgeEnableSerialParsing enables command parsing on the serial stream
	BridgeEnableSerialParsing = 12
)

// Bridge code types returned by BridgeGetCodeType.
const (
	// CodeTypeBootloader means the bridge runs its bootloader
	CodeTypeBootloader = 0

	// CodeTypeApplication means the bridge runs its application
	CodeTypeApplication = 1
)

// ROM bootloader bytes (STM32 AN3155 style).
const (
	// Ack is the single-byte "continue" reply
	Ack = 0x79

	// Nack is the single-byte rejection reply
	Nack = 0x1F

	// CmdPing is sent alone to synchronise with the bootloader
	CmdPing = 0x7F

	// CmdGet returns the bootloader version and supported commands
	CmdGet = 0x00

	// CmdGetID returns the product ID
	CmdGetID = 0x02

	// CmdReadMemory reads up to MaxReadLength bytes
	CmdReadMemory = 0x11

	// CmdWriteMemory writes up to MaxWriteLength bytes
	CmdWriteMemory = 0x31

	// CmdErase erases a list of flash pages
	CmdErase = 0x43
)

// Memory region limits.
const (
	// MaxReadLength is the largest single read-memory transfer
	MaxReadLength = 96

	// MaxWriteLength is the largest single write-memory transfer
	MaxWriteLength = 256

	// MaxPages is the number of erasable flash pages
	MaxPages = 116

	// PageSize is the flash page size in bytes
	PageSize = 1024
)

// YMODEM control bytes.
const (
	SOH = 0x01
	STX = 0x02
	EOT = 0x04
	ACK = 0x06
	NAK = 0x15
	CAN = 0x18

	// CRCRequest is the receiver's 'C' handshake asking for CRC-16 blocks
	CRCRequest = 'C'
)

// YMODEM block sizes.
const (
	// ShortBlockSize is the payload size of an SOH block
	ShortBlockSize = 128

	// LongBlockSize is the payload size of an STX block
	LongBlockSize = 1024

	// BlockOverhead is header(1) + seq(1) + ~seq(1) + crc(2)
	BlockOverhead = 5
)

// DefaultResponseBufferSize is the receive buffer used for single-transfer replies.
const DefaultResponseBufferSize = 256
