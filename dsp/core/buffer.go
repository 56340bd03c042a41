package core

// Zero clears buf.
func Zero(buf []float64) { clear(buf) }

// ZeroAll clears the first n frames of every channel.
func ZeroAll(channels [][]float64, n int) {
	for _, ch := range channels {
		clear(ch[:n])
	}
}

// IsSilent reports whether every sample of buf is exactly zero.
func IsSilent(buf []float64) bool {
	for _, v := range buf {
		if v != 0 {
			return false
		}
	}
	return true
}
