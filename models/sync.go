// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

import "time"

// UpdatePolicy decides whether a pulled row may overwrite a local row that
// already exists.
type UpdatePolicy string

const (
	// PolicyNewer updates only when the payload row is strictly newer than
	// the stored row. This is the default.
	PolicyNewer UpdatePolicy = "newer"
	// PolicyMaster updates only when the payload originates from the
	// repository designated as master for the resource.
	PolicyMaster UpdatePolicy = "master"
	// PolicyOther updates whenever the payload comes from a repository
	// different from the one that last modified the row.
	PolicyOther UpdatePolicy = "other"
	// PolicyThis never updates; the local row always wins.
	PolicyThis UpdatePolicy = "this"
)

// SyncDirection labels a sync log entry as inbound or outbound.
type SyncDirection string

const (
	SyncIn  SyncDirection = "in"
	SyncOut SyncDirection = "out"
)

// SyncResult is the outcome class of one sync run direction.
type SyncResult string

const (
	SyncSuccess SyncResult = "success"
	SyncWarning SyncResult = "warning"
	SyncError   SyncResult = "error"
)

// SyncRepository is a registered peer repository.
type SyncRepository struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Username   string    `json:"username,omitempty"`
	Password   string    `json:"-"`
	APIType    string    `json:"apitype"`
	AcceptPush bool      `json:"accept_push"`
	LastPullOn time.Time `json:"last_pull_on,omitempty"`
	LastPushOn time.Time `json:"last_push_on,omitempty"`
}

// SyncStrategy is the subset of row operations a task replicates.
type SyncStrategy struct {
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// SyncTask binds one resource to one peer repository together with the
// replication policy and the bookkeeping timestamps.
//
// Running bars concurrent runs of the same task; Errored marks a task
// stopped after a permanent failure until operator action.
type SyncTask struct {
	ID           int64        `json:"id"`
	RepositoryID int64        `json:"repository_id"`
	ResourceName string       `json:"resource_name"`
	Strategy     SyncStrategy `json:"strategy"`
	UpdatePolicy UpdatePolicy `json:"update_policy"`
	Period       time.Duration `json:"period"`
	NextRunOn    time.Time    `json:"next_run_on"`
	Running      bool         `json:"running"`
	Errored      bool         `json:"errored"`
	LastPullOn   time.Time    `json:"last_pull_on,omitempty"`
	LastPushOn   time.Time    `json:"last_push_on,omitempty"`
}

// SyncLog records the outcome of one direction of one task run.
type SyncLog struct {
	ID              int64         `json:"id"`
	TaskID          int64         `json:"task_id"`
	Direction       SyncDirection `json:"direction"`
	Started         time.Time     `json:"started"`
	Finished        time.Time     `json:"finished"`
	Result          SyncResult    `json:"result"`
	RecordsSent     int           `json:"records_sent"`
	RecordsReceived int           `json:"records_received"`
	Message         string        `json:"message,omitempty"`
}
