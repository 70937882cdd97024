package serializer

import "errors"

var (
	// ErrParsingDocument indicates a payload that is not well-formed
	// canonical XML.
	ErrParsingDocument = errors.New("error parsing document")
	// ErrEncodingDocument indicates a document tree that could not be
	// serialized.
	ErrEncodingDocument = errors.New("error encoding document")
	// ErrBadValue indicates a field value that does not parse under the
	// field's declared type.
	ErrBadValue = errors.New("bad field value")
	// ErrUnknownTransform indicates a transform name with no registration.
	ErrUnknownTransform = errors.New("unknown transform")
)
