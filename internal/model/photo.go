package model

import "time"

// AllowedPhotoTypes lists the MIME types accepted for upload, mapped to the
// extension used when the original filename carries none.
var AllowedPhotoTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type Photo struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	BlobKey      string    `json:"blobKey"`
	Filename     string    `json:"filename"`
	Caption      *string   `json:"caption"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
	UploadedByID *string   `json:"uploadedById"`
	CreatedAt    time.Time `json:"createdAt"`
}

func AllowedPhotoType(mimeType string) bool {
	_, ok := AllowedPhotoTypes[mimeType]
	return ok
}
