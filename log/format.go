package log

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/big"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/holiman/uint256"
)

const (
	// timeFormat        = "2006-01-02T15:04:05-0700" // Standard time format for log values if not handled specially
	timeFormat = "2006-01-02T15:04:05-0700"
	// floatFormat       = 'f' // Format specifier for floats
	floatFormat = 'f'
	// termMsgJust       = 40 // Width to justify the log message field when attributes are present
	termMsgJust = 40
	// termCtxMaxPadding = 40 // Maximum padding allowed for attribute values for alignment
	termCtxMaxPadding = 40
)

// 40 spaces, pre-allocated for padding efficiency.
var spaces = []byte("                                        ")

// TerminalStringer is an analogous interface to the stdlib stringer, allowing
// own types to have custom shortened serialization formats when printed to the
// screen.
type TerminalStringer interface {
	TerminalString() string // Returns a concise string representation suitable for terminal output
}

func (h *TerminalHandler) format(buf []byte, r slog.Record, usecolor bool) []byte {
	// 1. Escape the main message for safe printing.
	msg := escapeMessage(r.Message)
	var color = "" // ANSI color code string ANSI
	// 2. Determine color based on log level if 'usecolor' is enabled.
	if usecolor {
		switch r.Level {
		case LevelCrit:
			color = "\x1b[35m" // Magenta
		case slog.LevelError:
			color = "\x1b[31m" // Red
		case slog.LevelWarn:
			color = "\x1b[33m" // Yellow
		case slog.LevelInfo:
			color = "\x1b[32m" // Green
		case slog.LevelDebug:
			color = "\x1b[36m" // Cyan
		case LevelTrace:
			color = "\x1b[34m" // Blue
		}
	}
	// 3. Initialize or reuse the buffer.
	if buf == nil {
		buf = make([]byte, 0, 30+termMsgJust) // Preallocate buffer with estimated size
	}
	b := bytes.NewBuffer(buf) // Use bytes.Buffer for easier writing

	// 4. Write Level (potentially colored).
	if color != "" { // Start color
		b.WriteString(color)
		b.WriteString(LevelAlignedString(r.Level)) // Write fixed-width level string
		b.WriteString("\x1b[0m")                   // Reset color
	} else {
		b.WriteString(LevelAlignedString(r.Level)) // Write level without color
	}

	// 5. Write Timestamp using custom terminal format.
	b.WriteString("[")
	writeTimeTermFormat(b, r.Time) // Format time as MM-DD|HH:MM:SS.ms
	b.WriteString("] ")

	// 6. Write Log Source (File/Line, Function).
	b.WriteString(h.Source(r).String()) // Assuming Source method exists
	b.WriteString(" ")

	// 7. Write the main log message.
	b.WriteString(msg)

	// 8. Justify (pad) the message area if attributes follow and message is short.
	// try to justify the log output for short messages
	//length := utf8.RuneCountInString(msg) // Use RuneCount for UTF8 correctness
	length := len(msg)                                           // Original code uses len(), potentially faster but less accurate for multi-byte chars
	if (r.NumAttrs()+len(h.attrs)) > 0 && length < termMsgJust { // Check if attributes exist and message is shorter than justification width
		b.Write(spaces[:termMsgJust-length]) // Write padding spaces
	}
	// 9. Format and write attributes.
	h.formatAttributes(b, r, color) // Call helper function

	// 10. Return the formatted bytes.
	return b.Bytes()
}

// formatAttributes formats and appends the log record's attributes to the buffer.
func (h *TerminalHandler) formatAttributes(buf *bytes.Buffer, r slog.Record, color string) {
	// Internal function to write a single attribute.
	writeAttr := func(attr slog.Attr, last bool) {
		buf.WriteByte(' ') // Separator space

		// Write Key (potentially colored and escaped)
		if color != "" {
			buf.WriteString(color) // Apply color
			// Use AvailableBuffer to potentially avoid allocation when appending escaped string.
			buf.Write(appendEscapeString(buf.AvailableBuffer(), attr.Key))
			buf.WriteString("\x1b[0m=") // Reset color and add separator
		} else {
			buf.Write(appendEscapeString(buf.AvailableBuffer(), attr.Key))
			buf.WriteByte('=') // Add separator
		}
		// Format Value using the dedicated function
		val := FormatSlogValue(attr.Value, buf.AvailableBuffer())

		// Apply padding for alignment based on stored/updated padding value
		padding := h.fieldPadding[attr.Key] // Get stored padding

		// Note: Using RuneCount for length calculation is more accurate for terminal alignment with multi-byte chars.
		length := utf8.RuneCount(val)                        // Calculate display length
		if padding < length && length <= termCtxMaxPadding { // If current value is longer (within limit), update padding
			padding = length
			h.fieldPadding[attr.Key] = padding // Store updated padding
		}
		buf.Write(val)                 // Write the formatted value
		if !last && padding > length { // If not the last attribute and padding is needed
			buf.Write(spaces[:padding-length]) // Write padding spaces
		}
	}

	var n = 0                                // Counter for attribute index
	var nAttrs = len(h.attrs) + r.NumAttrs() // Total number of attributes

	// Write handler's predefined attributes
	for _, attr := range h.attrs {
		writeAttr(attr, n == nAttrs-1) // Pass 'last' flag
		n++
	}
	// Write record's attributes
	r.Attrs(func(attr slog.Attr) bool { // Iterate through record attributes
		writeAttr(attr, n == nAttrs-1)
		n++
		return true // Continue iteration
	})
	buf.WriteByte('\n') // Add newline at the end of the log entry
}

// FormatSlogValue formats a slog.Value for serialization to terminal.
// It handles various data types, including Ethereum-specific ones like big.Int and uint256.Int.
func FormatSlogValue(v slog.Value, tmp []byte) (result []byte) {
	var value any // To hold the underlying value for reflection/panic handling
	// Recover from potential panics during value processing (e.g., nil pointers)
	defer func() {
		if err := recover(); err != nil {
			// Check if the panic was due to a nil pointer dereference
			if valRef := reflect.ValueOf(value); valRef.Kind() == reflect.Ptr && valRef.IsNil() {
				result = []byte("<nil>") // Output <nil> for nil pointers
			} else {
				panic(err) // Re-panic if it was something else
			}
		}
	}()

	// Handle basic slog kinds directly
	switch v.Kind() {
	case slog.KindString:
		return appendEscapeString(tmp, v.String()) // Escape and append string
	case slog.KindInt64: // All int-types (int8, int16 etc) wind up here
		return appendInt64(tmp, v.Int64()) // Format with thousand separators
	case slog.KindUint64: // All uint-types (uint8, uint16 etc) wind up here
		return appendUint64(tmp, v.Uint64(), false) // Format with thousand separators
	case slog.KindFloat64:
		return strconv.AppendFloat(tmp, v.Float64(), floatFormat, 3, 64) // Format float
	case slog.KindBool:
		return strconv.AppendBool(tmp, v.Bool()) // Format boolean
	case slog.KindDuration:
		value = v.Duration() // Fall through to general handling
	case slog.KindTime:
		// Performance optimization: No need for escaping since the provided
		// timeFormat doesn't have any escape characters, and escaping is
		// expensive.
		// timeFormat
		return v.Time().AppendFormat(tmp, timeFormat) // Use standard time format
	default: // KindAny, KindGroup, KindLogValuer
		value = v.Any() // Get the underlying value
	}
	// Handle nil value explicitly
	if value == nil {
		return []byte("<nil>")
	}
	// Handle specific types, including common Go types and Ethereum types
	switch v := value.(type) {
	case *big.Int: // Need to be before fmt.Stringer-clause
		return appendBigInt(tmp, v) // Format big.Int with separators
	case *uint256.Int: // Need to be before fmt.Stringer-clause
		return appendU256(tmp, v) // Format uint256.Int with separators
	case error:
		return appendEscapeString(tmp, v.Error()) // Format error message and escape
	case TerminalStringer: // Check for custom terminal representation
		return appendEscapeString(tmp, v.TerminalString()) // Use custom format and escape
	case fmt.Stringer: // Check for standard string representation
		return appendEscapeString(tmp, v.String()) // Use standard format and escape
	}

	// Fallback: Use fmt %+v for generic formatting, then escape the result
	// We can use the 'tmp' as a scratch-buffer, to first format the
	// value, and in a second step do escaping.
	internal := fmt.Appendf(tmp, "%+v", value)           // Format using detailed representation
	return appendEscapeString(tmp[:0], string(internal)) // Escape the formatted string (reset tmp slice before use)
}

// appendInt64 formats n with thousand separators and writes into buffer dst.
func appendInt64(dst []byte, n int64) []byte {
	if n < 0 {
		return appendUint64(dst, uint64(-n), true) // Handle negative numbers via uint64 helper
	}
	return appendUint64(dst, uint64(n), false) // Handle positive numbers
}

// appendUint64 formats n with thousand separators and writes into buffer dst.
func appendUint64(dst []byte, n uint64, neg bool) []byte {
	// Small numbers are fine as is
	if n < 100000 { // Optimization: format small numbers directly
		if neg {
			return strconv.AppendInt(dst, -int64(n), 10) // Append negative
		} else {
			return strconv.AppendInt(dst, int64(n), 10) // Append positive
		}
	}
	// Large numbers should be split
	const maxLength = 26 // Max length for uint64 with separators uint64

	var (
		out   = make([]byte, maxLength) // Temporary buffer
		i     = maxLength - 1           // Index starts from end
		comma = 0                       // Counter for comma placement
	)
	// Build the string in reverse order
	for ; n > 0; i-- { // Iterate while number > 0
		if comma == 3 { // Insert comma every 3 digits
			comma = 0
			out[i] = ','
		} else {
			comma++
			out[i] = '0' + byte(n%10) // Add digit
			n /= 10                   // Move to next digit
		}
	}
	if neg { // Add negative sign if needed
		out[i] = '-'
		i--
	}
	// Append the formatted part of 'out' to 'dst'
	return append(dst, out[i+1:]...)
}

// FormatLogfmtUint64 formats n with thousand separators. (Used elsewhere for logfmt potentially)
func FormatLogfmtUint64(n uint64) string {
	return string(appendUint64(nil, n, false)) // Use helper with nil buffer
}

// appendBigInt formats n with thousand separators and writes to dst.
func appendBigInt(dst []byte, n *big.Int) []byte {
	// Optimization: Use faster uint64/int64 formatting if possible
	if n.IsUint64() {
		return appendUint64(dst, n.Uint64(), false)
	}
	if n.IsInt64() {
		return appendInt64(dst, n.Int64())
	}

	// Handle general big.Int
	var (
		text  = n.String()                          // Get standard string representation
		buf   = make([]byte, len(text)+len(text)/3) // Preallocate buffer with estimated size
		comma = 0                                   // Comma counter
		i     = len(buf) - 1                        // Index from end
	)
	// Build string in reverse, inserting commas
	for j := len(text) - 1; j >= 0; j, i = j-1, i-1 {
		c := text[j] // Current character

		switch {
		case c == '-': // Handle negative sign
			buf[i] = c
		case comma == 3: // Insert comma
			buf[i] = ','
			i-- // Move buffer index back one more
			comma = 0
			fallthrough // Continue to default case
		default: // Add digit
			buf[i] = c
			comma++
		}
	}
	// Append the formatted part to dst
	return append(dst, buf[i+1:]...)
}

// appendU256 formats n with thousand separators.
func appendU256(dst []byte, n *uint256.Int) []byte {
	// Optimization: Use uint64 formatting if possible
	if n.IsUint64() {
		return appendUint64(dst, n.Uint64(), false)
	}
	// Use the PrettyDec method from the uint256 library which already adds separators
	res := []byte(n.PrettyDec(',')) // Get pre-formatted string
	return append(dst, res...)      // Append to destination buffer
}

// appendEscapeString writes the string s to the given writer, with
// escaping/quoting if needed. Used for attribute keys and values.
func appendEscapeString(dst []byte, s string) []byte {
	needsQuoting := false  // Flag if quoting is needed (contains space or '=')
	needsEscaping := false // Flag if escaping is needed (contains control chars, quotes, high bytes)
	for _, r := range s {
		// If it contains spaces or equal-sign, we need to quote it.
		if r == ' ' || r == '=' {
			needsQuoting = true
			continue // Check remaining characters for escaping
		}
		// We need to escape it, if it contains
		// - character " (0x22) and lower (except space)
		// - characters above ~ (0x7E)
		// '=' (0x3D) is outside both ranges, so it only triggers quoting above.
		if r <= '"' || r > '~' {
			needsEscaping = true
			break // No need to check further
		}
	}
	if needsEscaping {
		return strconv.AppendQuote(dst, s) // Use standard quoting/escaping
	}
	// No escaping needed, but we might have to place within quote-marks, in case
	// it contained a space
	if needsQuoting {
		dst = append(dst, '"')          // Add opening quote
		dst = append(dst, []byte(s)...) // Add string content
		return append(dst, '"')         // Add closing quote
	}
	// No quoting or escaping needed
	return append(dst, []byte(s)...)
}

// escapeMessage checks if the provided string needs escaping/quoting, similarly
// to escapeString. The difference is that this method is more lenient: it allows
// for spaces and linebreaks to occur without needing quoting. Used for the main log message.
func escapeMessage(s string) string {
	needsQuoting := false
	for _, r := range s {
		// Allow CR/LF/TAB. This is to make multi-line messages work.
		if r == '\r' || r == '\n' || r == '\t' {
			continue // Allow these characters without quoting
		}
		// We quote everything below <space> (0x20) and above~ (0x7E),
		// plus equal-sign
		if r < ' ' || r > '~' || r == '=' {
			needsQuoting = true
			break // Found character requiring quoting
		}
	}
	if !needsQuoting {
		return s // Return original string if no quoting needed
	}
	return strconv.Quote(s) // Quote the entire string
}

// writeTimeTermFormat writes on the format "MM-DD|HH:MM:SS.ms" e.g., "01-02|15:04:05.123"
func writeTimeTermFormat(buf *bytes.Buffer, t time.Time) {
	_, month, day := t.Date()            // Get month and day
	writePosIntWidth(buf, int(month), 2) // Write month with padding
	buf.WriteByte('-')                   // Separator
	writePosIntWidth(buf, day, 2)        // Write day with padding
	buf.WriteByte('|')                   // Separator
	hour, min, sec := t.Clock()          // Get H, M, S
	writePosIntWidth(buf, hour, 2)       // Write hour
	buf.WriteByte(':')                   // Separator
	writePosIntWidth(buf, min, 2)        // Write minute
	buf.WriteByte(':')                   // Separator
	writePosIntWidth(buf, sec, 2)        // Write second
	ns := t.Nanosecond()                 // Get nanoseconds
	buf.WriteByte('.')                   // Millisecond separator
	writePosIntWidth(buf, ns/1e6, 3)     // Write milliseconds (ns/1,000,000)
}

// writePosIntWidth writes non-negative integer i to the buffer, padded on the left
// by zeroes to the given width. Use a width of 0 to omit padding.
// Adapted from pkg.go.dev/log/slog/internal/buffer.
func writePosIntWidth(b *bytes.Buffer, i, width int) {
	// Cheap integer to fixed-width decimal ASCII.
	// Copied from log/log.go.
	if i < 0 {
		panic("negative int") // Should not happen for time components
	}
	// Assemble decimal in reverse order.
	var bb [20]byte   // Buffer for digits
	bp := len(bb) - 1 // Pointer to last byte
	// Format digits from right to left
	for i >= 10 || width > 1 { // Continue while number >= 10 OR padding is needed
		width--                       // Decrement padding width
		q := i / 10                   // Quotient
		bb[bp] = byte('0' + i - q*10) // Remainder is the digit
		bp--                          // Move pointer left
		i = q                         // Continue with quotient
	}
	// i < 10
	bb[bp] = byte('0' + i) // Last digit
	b.Write(bb[bp:])       // Write the formatted digits
}
