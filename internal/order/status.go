package order

import "strings"

// Status is an open set: callers may store any non-blank value through a
// status update. The constants are the values the service itself produces
// or recognises.
type Status string

const (
	StatusPending        Status = "Pending"
	StatusConfirmed      Status = "Confirmed"
	StatusPreparing      Status = "Preparing"
	StatusOutForDelivery Status = "OutForDelivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

var knownStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// IsTerminal reports whether no further cancellation is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusDelivered
}

// ParseStatus trims v and maps it onto a known status case-insensitively.
// Unknown values are kept as given.
func ParseStatus(v string) Status {
	v = strings.TrimSpace(v)
	for _, s := range knownStatuses {
		if strings.EqualFold(v, string(s)) {
			return s
		}
	}
	return Status(v)
}
