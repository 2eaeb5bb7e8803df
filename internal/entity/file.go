// Structure of File Model in Dropzone.

package entity

import "time"

// Saved in DB as file:<ID>
// Timestamps are unix milliseconds so they can be scanned straight out of a redis hash.
type File struct {
	ID          string `json:"id" redis:"id"`
	Name        string `json:"filename" redis:"name"`
	Path        string `json:"-" redis:"path"`
	Size        int64  `json:"size" redis:"size"`
	ContentType string `json:"content_type" redis:"content_type"`
	UploadedAt  int64  `json:"upload_time" redis:"uploaded_at"`
	ExpiresAt   int64  `json:"expires_at" redis:"expires_at"`
}

// Expired reports whether the file is eligible for removal at now.
func (f File) Expired(now time.Time) bool {
	return f.ExpiresAt < now.UnixMilli()
}

// ExpiredFile is what the sweeper needs to know about a file it is about to remove.
type ExpiredFile struct {
	ID   string
	Path string
}

// Incoming upload metadata, validated before anything touches the storage.
type FileUpload struct {
	Name string `valid:"required,notblank~name:File name cannot be blank,nocontrol~name:File name contains control characters,stringlength(1|255)"`
	Size int64  `valid:"-"`
}
