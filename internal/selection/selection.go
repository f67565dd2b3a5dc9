// Package selection decides which user-picked files may join a collection.
package selection

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mangatl/mangatl/internal/blobs"
)

// DefaultMaxSize is the per-file ceiling.
const DefaultMaxSize = 5 * 1024 * 1024

// accepted maps a lowercased extension to the content type it is offered as.
// Only the name is checked; the bytes are never inspected.
var accepted = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ContentType returns the content type implied by name's extension, or ""
// when the extension is not accepted.
func ContentType(name string) string {
	return accepted[strings.ToLower(filepath.Ext(name))]
}

// Reason classifies a rejection.
type Reason string

const (
	ReasonType Reason = "file-invalid-type"
	ReasonSize Reason = "file-too-large"
)

// Rejection reports a file excluded from the collection.
type Rejection struct {
	Name   string `json:"name"`
	Size   int    `json:"size"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail"`
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Name, r.Detail)
}

// Filter splits files into the ones that satisfy the type and size
// constraints and the ones that do not. maxSize <= 0 selects DefaultMaxSize.
func Filter(files []blobs.File, maxSize int) ([]blobs.File, []Rejection) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var ok []blobs.File
	var rejected []Rejection
	for _, f := range files {
		if r, bad := check(f, maxSize); bad {
			rejected = append(rejected, r)
			continue
		}
		ok = append(ok, f)
	}
	return ok, rejected
}

func check(f blobs.File, maxSize int) (Rejection, bool) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, known := accepted[ext]; !known {
		return Rejection{
			Name:   f.Name,
			Size:   len(f.Data),
			Reason: ReasonType,
			Detail: fmt.Sprintf("unsupported extension %q (only .jpg, .jpeg and .png)", ext),
		}, true
	}

	if len(f.Data) > maxSize {
		return Rejection{
			Name:   f.Name,
			Size:   len(f.Data),
			Reason: ReasonSize,
			Detail: fmt.Sprintf("file is %d bytes, larger than %d bytes", len(f.Data), maxSize),
		}, true
	}

	return Rejection{}, false
}
