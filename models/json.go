package models

// JSONMap holds loosely-typed provider/config payloads (smtp_config,
// metadata, provider_response, personalized_data). Columns using it are
// declared with the gorm json serializer.
type JSONMap map[string]any

// String returns the value under key when it is a string
func (m JSONMap) String(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}
