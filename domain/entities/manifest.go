package entities

// Manifest describes what a module registers with the host. It is produced
// by the extension side from its definition and by the reference host from
// what was actually registered.
type Manifest struct {
	Name          string                 `json:"name" yaml:"name" jsonschema:"maxLength=63,minLength=1" validate:"modname"`
	DataTypes     []DataType             `json:"data_types,omitempty" yaml:"data_types,omitempty" validate:"dive"`
	Commands      []CommandManifest      `json:"commands" yaml:"commands" validate:"dive"`
	Subscriptions []SubscriptionManifest `json:"subscriptions,omitempty" yaml:"subscriptions,omitempty" validate:"dive"`
	Version       int                    `json:"version" yaml:"version" validate:"gte=0"`
	APIVersion    int                    `json:"api_version" yaml:"api_version"`
}

// CommandManifest describes one registered command.
type CommandManifest struct {
	Name     string `json:"name" yaml:"name" validate:"cmdname"`
	Flags    string `json:"flags" yaml:"flags" validate:"cmdflags"`
	FirstKey int    `json:"first_key" yaml:"first_key" validate:"gte=0"`
	LastKey  int    `json:"last_key" yaml:"last_key"`
	KeyStep  int    `json:"key_step" yaml:"key_step" validate:"gte=0"`
}

// SubscriptionManifest describes one keyspace event subscription.
type SubscriptionManifest struct {
	Events []string `json:"events" yaml:"events" validate:"min=1,dive,notifyevent"`
}

// CommandNames returns the command names in registration order.
func (m *Manifest) CommandNames() []string {
	names := make([]string, len(m.Commands))
	for i, c := range m.Commands {
		names[i] = c.Name
	}
	return names
}

// ValidKeySpec reports whether firstKey, lastKey and keyStep describe key
// positions the host accepts: a command without keys uses 0,0,0; otherwise
// keyStep is positive and lastKey is negative (counted from the end) or not
// before firstKey.
func ValidKeySpec(firstKey, lastKey, keyStep int) bool {
	if firstKey < 0 {
		return false
	}
	if firstKey == 0 {
		return lastKey == 0 && keyStep == 0
	}
	return keyStep > 0 && (lastKey < 0 || lastKey >= firstKey)
}
