package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
)

// Multipart part names understood by the service.
const (
	PartMetadata  = "metadata"
	PartPayload   = "payload"
	PartThumbnail = "thumbnail"
)

// buildMultipart encodes metadata as a JSON part followed by the optional
// payload and thumbnail files. The body is built once so retries can resend it.
func buildMultipart(metadata interface{}, payloadPath, thumbnailPath string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, PartMetadata))
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("error creating metadata part: %w", err)
	}
	if err := json.NewEncoder(part).Encode(metadata); err != nil {
		return nil, "", fmt.Errorf("error encoding metadata: %w", err)
	}

	if payloadPath != "" {
		if err := addFilePart(mw, PartPayload, payloadPath); err != nil {
			return nil, "", err
		}
	}
	if thumbnailPath != "" {
		if err := addFilePart(mw, PartThumbnail, thumbnailPath); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("error closing multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func addFilePart(mw *multipart.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening %s for upload: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(name, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("error creating %s part: %w", name, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("error writing %s part: %w", name, err)
	}
	return nil
}
