package planner

import (
	"errors"
	"fmt"

	"github.com/pior/docdb/doc"
)

// ErrDocumentTooLarge is the sentinel wrapped by TooLargeError. Callers
// in the root package classify it into the client's document-too-large
// error kind.
var ErrDocumentTooLarge = errors.New("planner: operation exceeds maxCommandSize")

// TooLargeError names the offending operation's document and the limit
// it exceeded.
type TooLargeError struct {
	Document *doc.Document
	Size     int
	Limit    int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("planner: operation of size %d exceeds maxCommandSize %d", e.Size, e.Limit)
}

func (e *TooLargeError) Unwrap() error { return ErrDocumentTooLarge }

func tooLarge(d *doc.Document, size, limit int) error {
	return &TooLargeError{Document: d, Size: size, Limit: limit}
}
