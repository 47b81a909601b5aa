package domain

import "io"

const KB = 1024
const MB = KB * KB

// File is an attachment payload as received from the client.
type File struct {
	Name string `validate:"required,max=255"`
	Size int64  `validate:"gte=0"`
	Body io.Reader
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}
