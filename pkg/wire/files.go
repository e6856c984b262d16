package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// FileEntry describes one file on the device's storage.
type FileEntry struct {
	Name   string `json:"name"`
	Date   int64  `json:"date"`
	Length int64  `json:"length"`
}

// ModTime returns the entry's modification time.
func (e FileEntry) ModTime() time.Time {
	return time.Unix(e.Date, 0)
}

// FileList is the device's storage listing. It is always replaced as a
// whole.
type FileList struct {
	SDCardPresent bool        `json:"SdCardPresent"`
	TotalBytes    int64       `json:"totalBytes"`
	UsedBytes     int64       `json:"usedBytes"`
	NumFiles      int         `json:"numFiles"`
	Files         []FileEntry `json:"files"`
}

// Names returns the file names in listing order.
func (l *FileList) Names() []string {
	out := make([]string, len(l.Files))
	for i, f := range l.Files {
		out[i] = f.Name
	}
	return out
}

// ParseFileList decodes a listing as served by the device's HTTP
// endpoint.
func ParseFileList(data []byte) (*FileList, error) {
	var fl FileList
	if err := json.Unmarshal(data, &fl); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	if fl.NumFiles == 0 {
		fl.NumFiles = len(fl.Files)
	}
	return &fl, nil
}

func decodeFileList(body map[string]any) (*FileList, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	return ParseFileList(b)
}
