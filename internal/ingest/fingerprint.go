package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/david/bidsense/internal/models"
)

// DocumentFingerprint identifies an uploaded solicitation by its title,
// agency and identifier, so the same document ingested twice maps to one
// opportunity.
func DocumentFingerprint(rec models.ExtractedRecord) string {
	externalID := ""
	if rec.ExternalID != nil {
		externalID = *rec.ExternalID
	}
	return hashParts("document", rec.Title, rec.Agency, externalID)
}

// ListingFingerprint identifies a feed listing by source and external id,
// falling back to url and title when the feed has no id.
func ListingFingerprint(source, externalID, url, title string) string {
	if strings.TrimSpace(externalID) != "" {
		return hashParts("listing", source, externalID)
	}
	return hashParts("listing", source, url, title)
}

func hashParts(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(normalizeSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "::")))
	return hex.EncodeToString(sum[:])
}
