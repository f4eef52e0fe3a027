package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// epoch is stamped on every entry so archives of the same input are
// byte-identical.
var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type Asset struct {
	Filename string
	Data     []byte
}

// ArchiveAssets writes assets, in order, into a deflated zip.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Deflate,
			Modified: epoch,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
