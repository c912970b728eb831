package session

import "errors"

// ErrDuplicateSession is returned by Create when the requested id is already
// held by a live session.
var ErrDuplicateSession = errors.New("session id already exists")

// ErrUnknownSession is returned by operations that require a live session
// (SetActive, Write, Resize) when the id is not registered. Remove treats an
// unknown id as a benign no-op instead.
var ErrUnknownSession = errors.New("unknown session")
