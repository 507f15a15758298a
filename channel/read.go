package channel

// ReceiveFull reads until n bytes have arrived or a Receive returns no data.
// The returned slice is shorter than n if the channel stopped early.
func ReceiveFull(ch Channel, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		k, err := ch.Receive(buf[got:])
		if err != nil {
			return buf[:got], err
		}
		if k == 0 {
			break
		}
		got += k
	}
	return buf[:got], nil
}
