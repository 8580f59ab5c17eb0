package reader

// decodeLegacy converts a single-byte legacy-encoded line into a Go
// string. The game's log output predates UTF-8 adoption: every byte maps
// 1:1 to a Unicode code point in the Latin-1 range, so decoding is a
// direct byte-to-rune widening rather than a real charset transform.
func decodeLegacy(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
