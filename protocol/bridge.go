package protocol

import "fmt"

// MaxBridgeArgs is the largest argc a bridge frame can carry in this codec.
const MaxBridgeArgs = 8

// BuildBridgeCmd constructs a bridge command frame.
//
// Frame structure:
//
//	[0xAA][ARGC][CMD...][0x55]
func BuildBridgeCmd(args ...byte) ([]byte, error) {
	if len(args) == 0 {
		return nil, NewError("build bridge command", ErrBounds, "command cannot be empty")
	}
	if len(args) > MaxBridgeArgs {
		return nil, NewError("build bridge command", ErrBounds, "%d arguments exceed maximum %d", len(args), MaxBridgeArgs)
	}

	frame := make([]byte, 0, BridgeFrameOverhead+len(args))
	frame = append(frame, BridgeRequestMarker, byte(len(args)))
	frame = append(frame, args...)
	frame = append(frame, BridgeTerminator)

	return frame, nil
}

// ParseBridgeResponse validates a bridge response frame and returns its value bytes.
//
// Frame structure:
//
//	[0xBB][ARGC][VALUE...][0x55]
//
// The frame must be exactly argc+3 bytes long and argc must equal want.
// No value is returned unless every check passes.
func ParseBridgeResponse(frame []byte, want int) ([]byte, error) {
	const op = "parse bridge response"

	if len(frame) < BridgeFrameOverhead {
		return nil, NewError(op, ErrFraming, "frame too short: got %d bytes, minimum is %d", len(frame), BridgeFrameOverhead)
	}

	if frame[0] != BridgeResponseMarker {
		return nil, NewError(op, ErrFraming, "invalid marker: got 0x%02X, expected 0x%02X", frame[0], BridgeResponseMarker)
	}

	if frame[len(frame)-1] != BridgeTerminator {
		return nil, NewError(op, ErrFraming, "invalid terminator: got 0x%02X, expected 0x%02X", frame[len(frame)-1], BridgeTerminator)
	}

	argc := int(frame[1])
	if len(frame) != argc+BridgeFrameOverhead {
		return nil, NewError(op, ErrFraming, "frame length mismatch: got %d bytes, expected %d (argc=%d)", len(frame), argc+BridgeFrameOverhead, argc)
	}

	if argc != want {
		return nil, NewError(op, ErrFraming, "argc mismatch: got %d, expected %d", argc, want)
	}

	return frame[2 : 2+argc], nil
}

// BridgeOpName returns a readable name for a bridge opcode.
func BridgeOpName(op byte) string {
	switch op {
	case BridgeSetReset:
		return "set nRESET"
	case BridgeSetBootMode:
		return "set nBOOTMODE"
	case BridgeGetCodeType:
		return "get code type"
	case BridgeGetAppVersion:
		return "get application version"
	case BridgeIsAppPresent:
		return "is application present"
	case BridgeDownloadImage:
		return "download image"
	case BridgeRunApplication:
		return "run application"
	case BridgeRunBootloader:
		return "run bootloader"
	case BridgeUploadImage:
		return "upload image"
	case BridgeGetBootloaderVersion:
		return "get bootloader version"
	case BridgeDownloadBootloaderImage:
		return "download bootloader image"
	case BridgeIsBootloaderOld:
		return "is bootloader old"
	case BridgeEnableSerialParsing:
		return "enable serial parsing"
	default:
		return fmt.Sprintf("bridge command 0x%02X", op)
	}
}
