// Package memory provides in-process repositories for local development and tests.
package memory

import "fmt"

type repoError struct {
	op       string
	msg      string
	notFound bool
	conflict bool
}

func (e *repoError) Error() string       { return fmt.Sprintf("memory %s: %s", e.op, e.msg) }
func (e *repoError) IsNotFound() bool    { return e.notFound }
func (e *repoError) IsConflict() bool    { return e.conflict }
func (e *repoError) IsUnavailable() bool { return false }

func notFound(op, what string) error {
	return &repoError{op: op, msg: what + " not found", notFound: true}
}

func conflict(op, what string) error {
	return &repoError{op: op, msg: what + " already exists", conflict: true}
}
