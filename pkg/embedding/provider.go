package embedding

// Provider generates embedding vectors for free text plus numeric side
// features. Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns a vector for one input at the given model version.
	Embed(text string, numericFeatures []float32, version string) ([]float32, error)
	// EmbedBatch returns one vector per input, in order.
	EmbedBatch(inputs []BatchInput, version string) ([][]float32, error)
	// Healthy reports whether the provider is currently usable. Callers
	// are expected to fall back to local encoding when it is not.
	Healthy() bool
	// Version is the embedding version this provider produces.
	Version() string
}

type BatchInput struct {
	Text            string    `json:"text"`
	NumericFeatures []float32 `json:"numeric_features,omitempty"`
}
