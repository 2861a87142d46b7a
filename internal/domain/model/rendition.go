package model

import "time"

type RenditionStatus string

const (
	RenditionStatusReady RenditionStatus = "ready"
)

// Rendition is one produced output stream at one quality level for one
// asset/version. Identity is (VideoAssetID, VersionID, Quality); repeated
// finalize runs for the same key overwrite rather than duplicate.
type Rendition struct {
	VideoAssetID     string
	VersionID        string
	Quality          string
	ResolutionWidth  int
	ResolutionHeight int
	BitrateKbps      int
	FileBucket       string
	FileKey          string
	ManifestKey      string
	Status           RenditionStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
