package weed

import (
	"errors"
	"fmt"

	"github.com/danmuck/weedcore/internal/weed/alloc"
)

// Status is the integer result code exchanged across the plugin boundary.
// Values are append-only.
type Status int32

const (
	StatusSuccess          Status = 0
	StatusAllocation       Status = 1
	StatusImmutable        Status = 2
	StatusNoSuchElement    Status = 3
	StatusNoSuchLeaf       Status = 4
	StatusWrongSeedType    Status = 5
	StatusUndeletable      Status = 6
	StatusBadVersion       Status = 7
	StatusNoSuchPlant      Status = 32
	StatusPluginInvalid    Status = 64
	StatusFilterInvalid    Status = 65
	StatusTooManyInstances Status = 66
	StatusReinitNeeded     Status = 67
	StatusNotReady         Status = 68
	StatusInitialization   Status = 69
)

var (
	ErrAllocation       = errors.New("weed: memory allocation failed")
	ErrImmutable        = errors.New("weed: leaf is readonly")
	ErrNoSuchElement    = errors.New("weed: no such element")
	ErrNoSuchLeaf       = errors.New("weed: no such leaf")
	ErrWrongSeedType    = errors.New("weed: wrong seed type")
	ErrUndeletable      = errors.New("weed: leaf is undeletable")
	ErrBadVersion       = errors.New("weed: bad version")
	ErrNoSuchPlant      = errors.New("weed: no such plant")
	ErrPluginInvalid    = errors.New("weed: plugin invalid")
	ErrFilterInvalid    = errors.New("weed: filter invalid")
	ErrTooManyInstances = errors.New("weed: too many instances")
	ErrReinitNeeded     = errors.New("weed: reinit needed")
	ErrNotReady         = errors.New("weed: not ready")
	ErrInitialization   = errors.New("weed: initialization failed")
)

var statusErrors = []struct {
	status Status
	err    error
}{
	{StatusAllocation, ErrAllocation},
	{StatusImmutable, ErrImmutable},
	{StatusNoSuchElement, ErrNoSuchElement},
	{StatusNoSuchLeaf, ErrNoSuchLeaf},
	{StatusWrongSeedType, ErrWrongSeedType},
	{StatusUndeletable, ErrUndeletable},
	{StatusBadVersion, ErrBadVersion},
	{StatusNoSuchPlant, ErrNoSuchPlant},
	{StatusPluginInvalid, ErrPluginInvalid},
	{StatusFilterInvalid, ErrFilterInvalid},
	{StatusTooManyInstances, ErrTooManyInstances},
	{StatusReinitNeeded, ErrReinitNeeded},
	{StatusNotReady, ErrNotReady},
	{StatusInitialization, ErrInitialization},
}

// Err returns the sentinel for s, or nil for StatusSuccess.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	for _, se := range statusErrors {
		if se.status == s {
			return se.err
		}
	}
	return fmt.Errorf("weed: unknown status %d", int32(s))
}

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return s.Err().Error()
}

// StatusOf maps an error back to its wire status. Unrecognised errors
// report StatusPluginInvalid.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if errors.Is(err, alloc.ErrExhausted) {
		return StatusAllocation
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status
		}
	}
	return StatusPluginInvalid
}

// StatusError carries the operation and leaf key alongside a status
// sentinel. Every error the store returns has this shape.
type StatusError struct {
	Op  string
	Key string
	Err error
}

func (e *StatusError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Status reports the wire code of the wrapped sentinel.
func (e *StatusError) Status() Status { return StatusOf(e.Err) }

func opErr(op, key string, err error) error {
	return &StatusError{Op: op, Key: key, Err: err}
}

// MissingLeafError marks a leaf the caller could not do without.
type MissingLeafError struct {
	Key string
}

func (e *MissingLeafError) Error() string {
	return fmt.Sprintf("weed: required leaf %q missing", e.Key)
}

func (e *MissingLeafError) Unwrap() error { return ErrNoSuchLeaf }

// Optional swallows the "leaf absent" result so a probe of an optional
// leaf reads as success. Any other error passes through.
func Optional(err error) error {
	if errors.Is(err, ErrNoSuchLeaf) {
		return nil
	}
	return err
}

// Required upgrades an absent leaf to a MissingLeafError naming key.
func Required(key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoSuchLeaf) {
		return &MissingLeafError{Key: key}
	}
	return err
}
