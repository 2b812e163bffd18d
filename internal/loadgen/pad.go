package loadgen

import "bytes"

const (
	padKey    = `"padding":"`
	padFiller = 'x'
)

// Pad grows a serialized JSON payload to exactly target bytes. Bodies already
// at or above target are returned unchanged.
//
// When the gap is large enough a "padding" string field is added to the
// object; smaller gaps are filled with insignificant whitespace so the result
// is still valid JSON decoding to the same value.
func Pad(body []byte, target int) []byte {
	gap := target - len(body)
	if gap <= 0 {
		return body
	}

	n := len(body)
	if n < 2 || body[0] != '{' || body[n-1] != '}' {
		return append(body, bytes.Repeat([]byte{' '}, gap)...)
	}

	overhead := len(padKey) + 1
	empty := len(bytes.TrimSpace(body[1:n-1])) == 0
	if !empty {
		overhead++
	}

	out := make([]byte, 0, target)
	out = append(out, body[:n-1]...)

	if gap >= overhead {
		if !empty {
			out = append(out, ',')
		}
		out = append(out, padKey...)
		out = append(out, bytes.Repeat([]byte{padFiller}, gap-overhead)...)
		out = append(out, '"')
	} else {
		out = append(out, bytes.Repeat([]byte{' '}, gap)...)
	}

	return append(out, '}')
}
