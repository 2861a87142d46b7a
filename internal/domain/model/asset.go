package model

import "time"

type AssetStatus string

const (
	AssetStatusPending AssetStatus = "pending"
	AssetStatusReady   AssetStatus = "ready"
	AssetStatusFailed  AssetStatus = "failed"
)

// VideoAsset is the owning media record. The worker only ever flips its
// processing status and manifest URL as a side effect of one job's finalize.
type VideoAsset struct {
	ID               string
	ProcessingStatus AssetStatus
	HLSManifestURL   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
