package codec

// Bytes passes payloads through unchanged. Useful when the caller wants the
// stored bytes and does its own unmarshalling.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) {
	out := make([]byte, len(b)) // backends may reuse their buffers
	copy(out, b)
	return out, nil
}

// String converts payloads to Go strings without UTF-8 validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
