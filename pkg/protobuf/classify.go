package protobuf

// CheckSignature reports whether buf starts like a protobuf message. It only
// looks at the first byte: the field number must be 1 and the wire type must
// fall in 1..6. That range is kept as-is for compatibility with existing
// captures, even though it rejects varints and admits the unused type 6.
//
// A first byte of 0x09 to 0x0E has no known file-signature conflicts but does
// overlap tab, LF and CR, so a match still needs confirming with
// ParseStructural.
func CheckSignature(buf []byte) (bool, error) {
	if len(buf) == 0 {
		return false, ErrEmptyBuffer
	}
	fieldNumber := buf[0] >> 3
	wireType := buf[0] & 0b111
	return fieldNumber == 1 && wireType >= 1 && wireType <= 6, nil
}

// LooksLikeProtobuf is CheckSignature for callers that only want a verdict.
// An empty buffer does not look like protobuf.
func LooksLikeProtobuf(buf []byte) bool {
	ok, err := CheckSignature(buf)
	return err == nil && ok
}
