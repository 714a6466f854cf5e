package aipg

type CreateJobPayload struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Models         []string       `json:"models"`
	NSFW           bool           `json:"nsfw"`
	CensorNSFW     bool           `json:"censor_nsfw"`
	TrustedWorkers bool           `json:"trusted_workers"`
	R2             bool           `json:"r2"`
	Shared         bool           `json:"shared"`
	Params         map[string]any `json:"params"`
	MediaType      string         `json:"media_type,omitempty"` // "image" or "video"
}

type CreateJobResponse struct {
	ID      string  `json:"id"`
	Message string  `json:"message"`
	Kudos   float64 `json:"kudos"`
}

type JobStatusResponse struct {
	ID            string       `json:"id"`
	Done          bool         `json:"done"`
	Faulted       bool         `json:"faulted"`
	Processing    int          `json:"processing"`
	Finished      int          `json:"finished"`
	Waiting       int          `json:"waiting"`
	QueuePosition int          `json:"queue_position"`
	WaitTime      float64      `json:"wait_time"`
	Message       string       `json:"message"`
	Generations   []Generation `json:"generations"`
}

type Generation struct {
	ID       string `json:"id"`
	Img      string `json:"img"`
	ImgURL   string `json:"img_url"`
	Mime     string `json:"mime"`
	Seed     any    `json:"seed"`
	WorkerID string `json:"worker_id"`
	State    string `json:"state"`
}

// ImagePayload builds a single-image request for model at 1024x1024.
func ImagePayload(prompt, negative, model string) CreateJobPayload {
	return CreateJobPayload{
		Prompt:         prompt,
		NegativePrompt: negative,
		Models:         []string{model},
		CensorNSFW:     true,
		TrustedWorkers: true,
		R2:             true,
		MediaType:      "image",
		Params: map[string]any{
			"width":        1024,
			"height":       1024,
			"n":            1,
			"sampler_name": "k_euler",
			"steps":        30,
			"cfg_scale":    7.0,
		},
	}
}
