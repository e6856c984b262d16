package devicesim

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/espixelstick/esps-go/pkg/webapi"
)

const maxUpload = 4 << 20

func (d *Device) serveFiles(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	list := d.fileListLocked()
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		d.debugLog("write file list", "error", err)
	}
}

func (d *Device) serveDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	d.mu.Lock()
	found := d.deleteLocked(name)
	d.mu.Unlock()
	if !found {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	io.WriteString(w, "OK")
}

func (d *Device) serveUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	f, _, err := r.FormFile(webapi.FirmwareField)
	if err != nil {
		http.Error(w, "Update failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil || len(image) == 0 {
		http.Error(w, "Update failed: empty image", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	d.uploads = append(d.uploads, image)
	d.mu.Unlock()
	io.WriteString(w, "Update Success")

	// The device reboots after flashing.
	d.DropAll()
}
