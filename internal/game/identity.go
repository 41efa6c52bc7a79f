package game

import (
	"crypto/rand"
	mathrand "math/rand"
)

// Palette is the fixed set of display colors handed out round-robin to
// sessions that do not request one.
var Palette = []string{
	"#ff5555",
	"#55ff88",
	"#5588ff",
	"#ffcc44",
	"#cc66ff",
	"#44ddee",
	"#ff8844",
	"#99ee44",
}

const (
	generatedIDLength  = 9
	generatedIDCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// generateSessionID produces a random 9-character identifier.
func generateSessionID() string {
	buf := make([]byte, generatedIDLength)
	if _, err := rand.Read(buf); err != nil {
		//1.- Fall back to the math/rand source; ids only need uniqueness, not secrecy.
		for i := range buf {
			buf[i] = byte(mathrand.Intn(256))
		}
	}
	for i, b := range buf {
		buf[i] = generatedIDCharset[int(b)%len(generatedIDCharset)]
	}
	return string(buf)
}
