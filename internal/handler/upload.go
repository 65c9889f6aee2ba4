package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dukerupert/punchlist/internal/model"
)

// upload is the decoded photo upload, whichever body shape carried it.
type upload struct {
	Data         []byte
	Filename     string
	MimeType     string
	Caption      *string
	UploadedByID *string
}

// readUpload decodes a multipart or base64 JSON upload and validates the
// bytes. Errors are client-facing.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var u *upload
	var err error
	switch mediaType {
	case "multipart/form-data":
		u, err = readMultipartUpload(w, r, maxBytes)
	case "application/json", "":
		u, err = readJSONUpload(w, r, maxBytes)
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	if err != nil {
		return nil, err
	}
	if err := u.validate(maxBytes); err != nil {
		return nil, err
	}
	return u, nil
}

func readMultipartUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(maxBytes)
		}
		return nil, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, errors.New("failed to read file")
	}

	u := &upload{
		Data:     data,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
	}
	// Generic part types say nothing; let the sniffer decide.
	if u.MimeType == "application/octet-stream" {
		u.MimeType = ""
	}
	if v := r.FormValue("caption"); v != "" {
		u.Caption = &v
	}
	if v := r.FormValue("uploadedById"); v != "" {
		u.UploadedByID = &v
	}
	return u, nil
}

// jsonUploadLimit bounds a base64 JSON upload body for a decoded limit of
// maxBytes: the encoded payload plus room for the other fields.
func jsonUploadLimit(maxBytes int64) int64 {
	return int64(base64.StdEncoding.EncodedLen(int(maxBytes))) + 64<<10
}

func readJSONUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, jsonUploadLimit(maxBytes))

	var req struct {
		File         string  `json:"file"`
		Filename     string  `json:"filename"`
		MimeType     string  `json:"mimeType"`
		Size         *int64  `json:"size"`
		Caption      *string `json:"caption"`
		UploadedByID *string `json:"uploadedById"`
	}
	if err := decodeJSONBody(r.Body, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, tooLarge(maxBytes)
		}
		return nil, errors.New("invalid JSON")
	}
	if req.File == "" {
		return nil, errors.New("file is required")
	}

	encoded := req.File
	// Accept a full data URL as well as bare base64.
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.IndexByte(encoded, ','); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("file must be base64 encoded")
	}
	if req.Size != nil && *req.Size != int64(len(data)) {
		return nil, fmt.Errorf("size %d does not match the %d decoded bytes", *req.Size, len(data))
	}

	return &upload{
		Data:         data,
		Filename:     req.Filename,
		MimeType:     req.MimeType,
		Caption:      req.Caption,
		UploadedByID: req.UploadedByID,
	}, nil
}

// validate checks size and type, and fills in the MIME type and filename
// when the client left them out.
func (u *upload) validate(maxBytes int64) error {
	if len(u.Data) == 0 {
		return errors.New("file is empty")
	}
	if int64(len(u.Data)) > maxBytes {
		return tooLarge(maxBytes)
	}

	detected := mimetype.Detect(u.Data)
	if u.MimeType == "" {
		u.MimeType = detected.String()
	}
	if mt, _, err := mime.ParseMediaType(u.MimeType); err == nil {
		u.MimeType = mt
	}
	if !model.AllowedPhotoType(u.MimeType) {
		return fmt.Errorf("file type %s is not allowed; use jpeg, png, gif, or webp", u.MimeType)
	}
	if !detected.Is(u.MimeType) {
		return fmt.Errorf("file content is %s, not %s", detected.String(), u.MimeType)
	}

	u.Filename = path.Base(strings.ReplaceAll(strings.TrimSpace(u.Filename), `\`, "/"))
	if u.Filename == "." || u.Filename == "/" {
		u.Filename = "photo." + model.AllowedPhotoTypes[u.MimeType]
	}
	u.Caption = trimmed(u.Caption)
	u.UploadedByID = trimmed(u.UploadedByID)
	return nil
}

func tooLarge(maxBytes int64) error {
	if maxBytes >= 1<<20 && maxBytes%(1<<20) == 0 {
		return fmt.Errorf("file exceeds the %d MB limit", maxBytes>>20)
	}
	return fmt.Errorf("file exceeds the %d byte limit", maxBytes)
}
