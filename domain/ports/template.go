package ports

// TemplateEngine renders manifest templates with configuration values.
type TemplateEngine interface {
	// Render processes raw with config and returns the resolved bytes.
	Render(raw []byte, config map[string]any) ([]byte, error)
}
