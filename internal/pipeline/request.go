package pipeline

import (
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Request struct {
	Prompt  string
	Address string
	Session string
}

// RequestFromQuery reads user_prompt, address and the optional session.
// Each of the first two must appear exactly once.
func RequestFromQuery(q url.Values) (Request, error) {
	prompt, ok := single(q, "user_prompt")
	if !ok {
		return Request{}, fmt.Errorf("%w: user_prompt", ErrInvalidRequest)
	}
	address, ok := single(q, "address")
	if !ok {
		return Request{}, fmt.Errorf("%w: address", ErrInvalidRequest)
	}
	req := Request{Prompt: prompt, Address: address, Session: q.Get("session")}
	return req, req.Validate()
}

func (r Request) Validate() error {
	if !utf8.ValidString(r.Prompt) || !utf8.ValidString(r.Address) {
		return fmt.Errorf("%w: not valid text", ErrInvalidRequest)
	}
	if r.Session != "" {
		if _, err := uuid.Parse(r.Session); err != nil {
			return fmt.Errorf("%w: session: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

func single(q url.Values, key string) (string, bool) {
	values, ok := q[key]
	if !ok || len(values) != 1 {
		return "", false
	}
	return values[0], true
}
