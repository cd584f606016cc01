// Package repository provides MySQL persistence for members. Sentinel
// errors let higher layers distinguish failure scenarios without matching
// on driver error strings.
package repository

import "errors"

// ErrMemberNotFound is returned when no live (non-deleted) member matches
// the lookup. Strategies translate it into the ambiguous credentials error.
var ErrMemberNotFound = errors.New("member not found")

// ErrEmailExists is returned when an insert hits the unique email index.
var ErrEmailExists = errors.New("email already exists")
