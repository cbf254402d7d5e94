package fbm

// Reserved header command codes. Application handlers are free to use
// any other byte value as their own command codes.
const (
	// CommandStatus carries a response status/error code in the header
	// value (decimal ASCII, application-defined).
	CommandStatus byte = 0x01
	// CommandContentType carries the MIME type of the body that
	// follows the header block.
	CommandContentType byte = 0x03
	// CommandGenericHeader marks an ad-hoc key-value header whose value
	// is "key: value" encoded as a single string.
	CommandGenericHeader byte = 0xA1
)
