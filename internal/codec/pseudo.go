package codec

// Pseudo is a protocol wrapper object (TIME, GROUPED_DATA, ...) kept as
// an opaque tagged value. Interpretation is deferred to layers above the
// protocol engine; BINARY is the one wrapper the codec resolves itself,
// to []byte.
type Pseudo struct {
	Kind   string
	Fields map[string]any
}
