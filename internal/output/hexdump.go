package output

import (
	"fmt"
	"io"
)

const hexLineBytes = 16

// writeHexDump prints the classic offset/hex/ASCII dump, 16 bytes per line.
// Bytes outside the printable ASCII range show as '.'.
func writeHexDump(w io.Writer, data []byte) error {
	var line [hexLineBytes * 4]byte
	for base := 0; base < len(data); base += hexLineBytes {
		end := base + hexLineBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := data[base:end]

		buf := line[:0]
		buf = appendHexOffset(buf, base)
		buf = append(buf, ' ', ' ')
		for i := 0; i < hexLineBytes; i++ {
			if i == hexLineBytes/2 {
				buf = append(buf, ' ')
			}
			if i < len(chunk) {
				buf = append(buf, hexDigits[chunk[i]>>4], hexDigits[chunk[i]&0x0f], ' ')
			} else {
				buf = append(buf, ' ', ' ', ' ')
			}
		}
		buf = append(buf, ' ')
		for _, b := range chunk {
			if b < 0x20 || b > 0x7e {
				b = '.'
			}
			buf = append(buf, b)
		}
		buf = append(buf, '\n')

		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("hex dump: %w", err)
		}
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func appendHexOffset(buf []byte, off int) []byte {
	for shift := 12; shift >= 0; shift -= 4 {
		buf = append(buf, hexDigits[(off>>shift)&0x0f])
	}
	return buf
}
