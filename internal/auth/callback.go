package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/spotsession/internal/shared"
)

// Callback is the authorization code and anti-forgery state carried by a redirect URL.
type Callback struct {
	Code  string
	State string
}

// ExtractCallback parses text pasted by the operator as the URL their browser was redirected to.
//
// The URL must be absolute. Other query parameters and their order do not matter.
func ExtractCallback(raw string) (Callback, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Callback{}, fmt.Errorf("%w: empty input", shared.ErrInvalidInput)
	}

	u, err := url.Parse(text)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: parse error: %v", shared.ErrInvalidInput, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Callback{}, fmt.Errorf("%w: %q is not an absolute URL", shared.ErrInvalidInput, text)
	}

	return CallbackFromQuery(u.Query())
}

// CallbackFromQuery reads the code and state parameters of a redirect.
func CallbackFromQuery(q url.Values) (Callback, error) {
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		if e := q.Get("error"); e != "" {
			return Callback{}, fmt.Errorf("%w: authorization server returned %q", shared.ErrInvalidInput, e)
		}
		return Callback{}, fmt.Errorf("%w: failed to find code and/or state in query string", shared.ErrInvalidInput)
	}
	return Callback{Code: code, State: state}, nil
}
