package codec

import "errors"

var (
	// ErrSchemaMismatch reports a record that cannot be encoded under the
	// target schema version.
	ErrSchemaMismatch = errors.New("record incompatible with target schema")

	// ErrUnknownSchema reports a schema identifier the registry could not
	// resolve, whether it does not exist or the lookup itself failed.
	ErrUnknownSchema = errors.New("unknown schema identifier")

	// ErrMalformedMessage reports a message whose wire header is absent,
	// truncated or carries an unrecognized format marker.
	ErrMalformedMessage = errors.New("malformed message framing")
)
