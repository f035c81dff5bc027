package core

import "errors"

var (
	// ErrNotFound signals a missing vehicle, issue or conversation.
	ErrNotFound = errors.New("not found")
	// ErrForbidden signals an ownership mismatch.
	ErrForbidden = errors.New("forbidden")
	// ErrUpstream wraps a transport failure from the LLM backend.
	ErrUpstream = errors.New("upstream failure")
	// ErrNoDocuments signals a chat against a conversation with nothing
	// uploaded yet.
	ErrNoDocuments = errors.New("no documents processed yet")
)
