// Structure of real-time Event Model in Dropzone.

package entity

import "encoding/json"

// Kinds of events pushed to subscribers.
const (
	EventClipboard   = "clipboard"
	EventFilesUpdate = "files_update"
)

// Actions carried by a files_update event.
const (
	FilesActionRefresh = "refresh"
	FilesActionCleanup = "cleanup"
)

// Event is broadcasted to every subscriber. Consumers dispatch on Kind.
// Events are treated as immutable once broadcasted.
type Event struct {
	Kind    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Payload of a clipboard event.
type ClipboardPayload struct {
	Content string `json:"content"`
}

// Payload of a files_update event.
type FilesPayload struct {
	Action string `json:"action"`
}

// ClipboardEvent builds the event sent after the shared clipboard changed.
func ClipboardEvent(content string) Event {
	return Event{Kind: EventClipboard, Payload: ClipboardPayload{Content: content}}
}

// FilesEvent builds the event sent after the file list changed.
func FilesEvent(action string) Event {
	return Event{Kind: EventFilesUpdate, Payload: FilesPayload{Action: action}}
}

// Data returns the JSON encoded payload, as written into the data field of a frame.
func (e Event) Data() (string, error) {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
