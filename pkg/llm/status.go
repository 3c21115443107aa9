// Backend status and detection results
package llm

// BackendStatus is the normalized result of a status round trip.
// Available means the backend is installed/configured; Connected means a
// live round trip succeeded. A backend can be available but not
// connected, e.g. a local service that is installed but not running.
type BackendStatus struct {
	Available    bool   `json:"available"`
	Connected    bool   `json:"connected"`
	Version      string `json:"version,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	Error        string `json:"error,omitempty"`
	LoadedModels int    `json:"loaded_models,omitempty"`
}

// DetectionResult is the outcome of probing one backend. Results are
// ephemeral: recomputed on every detection pass and never cached beyond
// the call unless the caller retains them.
type DetectionResult struct {
	Backend   BackendID     `json:"backend"`
	Available bool          `json:"available"`
	Status    BackendStatus `json:"status"`
	Models    []Model       `json:"models,omitempty"`
}

// Connected reports whether the probe completed a live round trip.
func (d DetectionResult) Connected() bool {
	return d.Status.Connected
}
