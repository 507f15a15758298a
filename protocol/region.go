package protocol

// NewReadRegion validates a read-memory transfer of n bytes at addr.
// n must be in [1, MaxReadLength].
func NewReadRegion(addr uint32, n int) (MemoryRegion, error) {
	if n < 1 || n > MaxReadLength {
		return MemoryRegion{}, NewError("read memory", ErrBounds,
			"length %d outside [1, %d]", n, MaxReadLength).AtAddress(addr)
	}
	return MemoryRegion{Address: addr, Length: n}, nil
}

// NewWriteRegion validates a write-memory transfer of n bytes at addr.
// n must be in [1, MaxWriteLength].
func NewWriteRegion(addr uint32, n int) (MemoryRegion, error) {
	if n < 1 || n > MaxWriteLength {
		return MemoryRegion{}, NewError("write memory", ErrBounds,
			"length %d outside [1, %d]", n, MaxWriteLength).AtAddress(addr)
	}
	return MemoryRegion{Address: addr, Length: n}, nil
}

// NewPageRange validates an erase of count pages starting at start.
// start must be at most MaxPages, count in [1, MaxPages] and start+count at most MaxPages.
func NewPageRange(start, count int) (PageRange, error) {
	const op = "erase"

	if start < 0 || start > MaxPages {
		return PageRange{}, NewError(op, ErrBounds, "start page %d outside [0, %d]", start, MaxPages)
	}
	if count < 1 || count > MaxPages {
		return PageRange{}, NewError(op, ErrBounds, "page count %d outside [1, %d]", count, MaxPages)
	}
	if start+count > MaxPages {
		return PageRange{}, NewError(op, ErrBounds, "pages %d..%d exceed last page %d", start, start+count-1, MaxPages-1)
	}
	return PageRange{Start: start, Count: count}, nil
}

// PagesFor returns the number of pages needed to hold size bytes.
func PagesFor(size int64) int {
	return int((size + PageSize - 1) / PageSize)
}
