package deadletter

import "time"

type FailedPayload struct {
	ProcessingContext ProcessingContext
	Sources           []Source
	Reason            Reason
}

type ProcessingContext struct {
	Component Component
	Time      time.Time
	Host      string
}

type Component struct {
	Branch   string
	Revision string
}

type Source struct {
	Name  string
	Key   string
	Value []byte
}

type Reason struct {
	Category string
	Error    string
}
