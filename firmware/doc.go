// Package firmware provides the flat binary images written to the target
// flash or pushed to the bridge.
//
// An image is a sized, sequential byte source consumed exactly once, front
// to back, in fixed-size chunks. No header format is imposed; burned-in
// identifiers at fixed flash offsets are opaque data here.
//
// # Usage
//
// Open an image from disk:
//
//	img, err := firmware.Open("app.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer img.Close()
//
//	for {
//	    chunk, off, err := img.Next(256, 0xFF)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// Wrap an in-memory buffer:
//
//	img := firmware.FromBytes("test.bin", data)
//
// # Error Handling
//
// Open and read failures match protocol.ErrIO.
package firmware
