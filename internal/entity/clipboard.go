// Structure of Clipboard Model in Dropzone.

package entity

// Saved in DB as clipboard, there is only ever one.
type Clipboard struct {
	Content   string `json:"content" redis:"content"`
	UpdatedAt int64  `json:"updated_at" redis:"updated_at"`
}

// Body of a clipboard update request.
type ClipboardUpdate struct {
	Content string `json:"content" valid:"stringlength(0|1048576)~content:Clipboard content is too large"`
}
