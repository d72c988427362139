package types

import "time"

// IndexState is the lifecycle state of a project's index
type IndexState string

const (
	StateUninitialized IndexState = "uninitialized"
	StateIndexing      IndexState = "indexing"
	StateIndexed       IndexState = "indexed"
	StateError         IndexState = "error"
)

// IndexStatus is the last known indexing status of a project.
// Writers always replace the whole record.
type IndexStatus struct {
	State     IndexState `json:"state"`
	Note      string     `json:"note"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UninitializedStatus is reported for projects that were never indexed
func UninitializedStatus() IndexStatus {
	return IndexStatus{
		State: StateUninitialized,
		Note:  "Not indexed",
	}
}
