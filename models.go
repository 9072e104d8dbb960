package main

// PreferencesResponse is returned for full preference lookups.
type PreferencesResponse struct {
	ProfileID   string            `json:"profileId"`
	Preferences map[string]string `json:"preferences"`
}

// SinglePrefResponse is returned for single-key lookups.
type SinglePrefResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SchemaEntry describes one preference the engine understands.
type SchemaEntry struct {
	Key         string   `json:"key"`
	Default     string   `json:"default"`
	Allowed     []string `json:"allowed"`
	Description string   `json:"description"`
}

// SchemaResponse lists every known preference.
type SchemaResponse struct {
	Preferences []SchemaEntry `json:"preferences"`
}

// NodesResponse reports how many nodes were added to the page.
type NodesResponse struct {
	Added int `json:"added"`
}

// StylesheetsResponse lists the stylesheets installed into the page.
type StylesheetsResponse struct {
	Stylesheets []string `json:"stylesheets"`
}
