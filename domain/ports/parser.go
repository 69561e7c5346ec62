package ports

import "github.com/reglet-dev/modbridge/domain/entities"

// ManifestParser parses raw manifest bytes.
type ManifestParser interface {
	// Parse unmarshals bytes into a Manifest struct.
	Parse(data []byte) (*entities.Manifest, error)
}
