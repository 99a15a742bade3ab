package codegen

import (
	"strings"
)

// DefaultBytesPerLine is the number of bytes per hex literal row.
const DefaultBytesPerLine = 12

// rowSeparator ends a row and indents the next one under the array
// opening in the template.
const rowSeparator = ",\n     "

const hexDigits = "0123456789abcdef"

// HexArray renders data as comma-separated 0x%02x literals, perLine bytes
// per row. It returns the text and the byte count.
func HexArray(data []byte, perLine int) (string, int) {
	if perLine <= 0 {
		perLine = DefaultBytesPerLine
	}

	var b strings.Builder
	rows := (len(data) + perLine - 1) / perLine
	b.Grow(len(data)*6 + rows*len(rowSeparator))

	for i, v := range data {
		if i > 0 {
			if i%perLine == 0 {
				b.WriteString(rowSeparator)
			} else {
				b.WriteString(", ")
			}
		}
		b.WriteString("0x")
		b.WriteByte(hexDigits[v>>4])
		b.WriteByte(hexDigits[v&0x0f])
	}

	return b.String(), len(data)
}
