// Package allocator maps leaf uplink ports onto spine fabric ports.
//
// Allocation is a pure function of its inputs. Every failure is reported as
// a typed Issue on an otherwise empty, zeroed result; nothing is partially
// committed.
package allocator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/newtron-network/fabricplan/pkg/util"
)

// Kind classifies an allocation issue.
type Kind string

const (
	ConstraintViolation      Kind = "ConstraintViolation"
	CapacityExceeded         Kind = "CapacityExceeded"
	ResourceExhaustion       Kind = "ResourceExhaustion"
	ProfileResolutionFailure Kind = "ProfileResolutionFailure"
)

// Issue is a single allocation failure.
type Issue struct {
	Kind    Kind
	Message string
}

func newIssue(kind Kind, format string, args ...interface{}) Issue {
	return Issue{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (i Issue) Error() string { return i.Message }

// Unwrap maps the issue kind to its sentinel so callers can use errors.Is.
func (i Issue) Unwrap() error {
	switch i.Kind {
	case ConstraintViolation:
		return util.ErrConstraintViolation
	case CapacityExceeded:
		return util.ErrCapacityExceeded
	case ResourceExhaustion:
		return util.ErrResourceExhausted
	case ProfileResolutionFailure:
		return util.ErrProfileNotFound
	}
	return nil
}

// MarshalJSON encodes the issue as its message text.
func (i Issue) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Message)
}

// UnmarshalJSON accepts a message string. The kind is not recoverable from
// the wire form and is left empty.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var msg string
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	*i = Issue{Message: msg}
	return nil
}

// Issues is an ordered list of allocation failures. An empty list means
// the allocation succeeded.
type Issues []Issue

// OK reports whether there are no issues.
func (is Issues) OK() bool { return len(is) == 0 }

// Messages returns the issue texts in order.
func (is Issues) Messages() []string {
	out := make([]string, len(is))
	for n, i := range is {
		out[n] = i.Message
	}
	return out
}

// Has reports whether any issue is of kind k.
func (is Issues) Has(k Kind) bool {
	for _, i := range is {
		if i.Kind == k {
			return true
		}
	}
	return false
}

// Err joins the issues into one error, or returns nil when there are none.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	errs := make([]error, len(is))
	for n, i := range is {
		errs[n] = i
	}
	return errors.Join(errs...)
}

// MarshalJSON always emits an array, never null.
func (is Issues) MarshalJSON() ([]byte, error) {
	if is == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Issue(is))
}
