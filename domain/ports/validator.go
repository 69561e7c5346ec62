package ports

import "github.com/reglet-dev/modbridge/domain/entities"

// ManifestValidator checks a module manifest against the host's registration
// rules before anything is handed to the host.
type ManifestValidator interface {
	// Validate returns an error describing every violated rule.
	Validate(manifest *entities.Manifest) error
}
