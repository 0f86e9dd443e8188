package classify

import "errors"

// Error kinds a caller can branch on with errors.Is. An empty catalog is not an
// error: it yields an empty result list.
var (
	// ErrInitialization means the model could not be loaded. It is fatal for the process.
	ErrInitialization = errors.New("model initialization failed")
	// ErrDecode means the uploaded image could not be read or decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrEncoding means the encoder failed or returned inconsistent embeddings.
	ErrEncoding = errors.New("embedding failed")
	// ErrInvalidRequest means max_phrases or top_k is out of range.
	ErrInvalidRequest = errors.New("invalid request")
)
