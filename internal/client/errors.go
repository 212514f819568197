package client

import "fmt"

// TransferError reports a transfer that produced no performance sample.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("transfer %s (%s): %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("transfer %s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
