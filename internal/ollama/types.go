package ollama

import "time"

// GenerateRequest is the body of POST /api/generate
type GenerateRequest struct {
	Model  string   `json:"model"`
	System string   `json:"system,omitempty"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"` // base64
	Stream bool     `json:"stream"`

	// Format "json" constrains the reply to valid JSON
	Format string `json:"format,omitempty"`

	Options   *Options `json:"options,omitempty"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

// Options are the sampling parameters regionscan sets. Field values are short,
// so replies are capped with NumPredict.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	Seed        int     `json:"seed,omitempty"`
}

// GenerateResponse is a non-streaming reply from /api/generate
type GenerateResponse struct {
	Model     string    `json:"model"`
	Response  string    `json:"response"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`

	// durations are reported in nanoseconds
	TotalDuration int64 `json:"total_duration,omitempty"`
	EvalCount     int   `json:"eval_count,omitempty"`
}

// Elapsed is the server-side generation time
func (r *GenerateResponse) Elapsed() time.Duration {
	return time.Duration(r.TotalDuration)
}

// Word is one token read from a field crop by a vision model
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// installedModel is one entry of GET /api/tags
type installedModel struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type tagsResponse struct {
	Models []installedModel `json:"models"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
