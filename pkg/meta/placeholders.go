package meta

import "strings"

// Placeholders recognized in metadata values.
const (
	PlaceholderUUID      = "{uuid}"
	PlaceholderPodName   = "{podName}"
	PlaceholderNamespace = "{namespace}"
	PlaceholderAppID     = "{appID}"
)

// ResolvePlaceholders substitutes the placeholders in value, which belongs to the
// named property. Every {uuid} gets its own identifier. {namespace} expands to
// "<namespace>.<appID>" so instance names stay unique per application; {appID} is
// replaced last. Unknown placeholders are left as they are.
func (m *Meta) ResolvePlaceholders(property, value string) (string, error) {
	for strings.Contains(value, PlaceholderUUID) {
		value = strings.Replace(value, PlaceholderUUID, m.newID(), 1)
	}

	if strings.Contains(value, PlaceholderPodName) {
		if m.podName == "" {
			return "", NewPodNameNotSetError(property)
		}
		value = strings.ReplaceAll(value, PlaceholderPodName, m.podName)
	}

	value = strings.ReplaceAll(value, PlaceholderNamespace, m.namespace+"."+m.id)
	value = strings.ReplaceAll(value, PlaceholderAppID, m.id)

	return value, nil
}
