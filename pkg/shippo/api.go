package shippo

import (
	"context"
	"net/http"
)

// APIClient sends one request to the Shippo Platforms API.
// HTTPAPIClient is the production implementation and MockAPIClient
// serves canned responses for tests and offline use.
type APIClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Request is one outbound call. Endpoint is relative to the API base URL.
type Request struct {
	Operation string
	Method    string
	Endpoint  string
	Body      any
	Query     Params
}

// ExpectedStatus returns the status code that marks success for the request's method.
func (r *Request) ExpectedStatus() int {
	if r.Method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

// Response is a decoded provider payload. The client does not model
// provider objects; callers read fields through the accessors.
type Response struct {
	StatusCode int
	Raw        []byte
	Data       map[string]any
}

// Message is one entry of the provider's "messages" list.
type Message struct {
	Source string
	Code   string
	Text   string
}

// String returns the string value at key, or "".
func (r *Response) String(key string) string {
	if r == nil {
		return ""
	}
	s, _ := r.Data[key].(string)
	return s
}

// Bool returns the boolean value at key, or false.
func (r *Response) Bool(key string) bool {
	if r == nil {
		return false
	}
	b, _ := r.Data[key].(bool)
	return b
}

// Object returns the nested object at key, or nil.
func (r *Response) Object(key string) map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r.Data[key].(map[string]any)
	return m
}

// ObjectID returns the provider's object_id field.
func (r *Response) ObjectID() string {
	return r.String("object_id")
}

// Results returns the "results" list of a paginated listing.
func (r *Response) Results() []map[string]any {
	if r == nil {
		return nil
	}
	items, _ := r.Data["results"].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Messages returns the provider's diagnostic messages, if any.
func (r *Response) Messages() []Message {
	if r == nil {
		return nil
	}
	items, _ := r.Data["messages"].([]any)
	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msg := Message{}
		msg.Source, _ = m["source"].(string)
		msg.Code, _ = m["code"].(string)
		msg.Text, _ = m["text"].(string)
		msgs = append(msgs, msg)
	}
	return msgs
}
