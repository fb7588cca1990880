package asset

import "time"

// Entry is one stored cache record: an immutable payload plus the time it was
// generated. Payloads are opaque bytes (MP3 or GIF depending on the key kind).
type Entry struct {
	Key       Key
	Payload   []byte
	CreatedAt time.Time
}
