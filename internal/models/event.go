package models

import "time"

type EventType string

const (
	EventStart       EventType = "start"
	EventStartFailed EventType = "start_failed"
	EventExit        EventType = "exit"
	EventRestart     EventType = "restart"
	EventErrored     EventType = "errored"
	EventStop        EventType = "stop"
)

/**
 * Event process lifecycle record exported to history sinks
 * @property {string} id - uuid of the event
 * @property {EventType} type - What happened
 * @property {string} name - Process name
 * @property {string} runId - Spawn the event belongs to
 */
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Name         string    `json:"name"`
	RunID        string    `json:"runId,omitempty"`
	Pid          int       `json:"pid,omitempty"`
	ExitCode     int       `json:"exitCode"`
	Status       RunStatus `json:"status"`
	RestartCount int       `json:"restartCount"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
