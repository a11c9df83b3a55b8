package widget

import (
	"net/url"

	"newsplugin/internal/curation"
)

// Request parameters carried by management links.
const (
	ParamInstance = "news_plugin_instance"
	ParamAction   = "news_plugin_action"
	ParamArg      = "news_plugin_arg"
	ParamToken    = "news_plugin_url_nonce"
)

// ForbiddenMessage is shown when a management request fails validation.
const ForbiddenMessage = "Security check failed. Try to submit the form once again."

// Action is the management request carried on the query string.
type Action struct {
	Instance string
	Name     string
	Arg      string
	Token    string
}

// ParseAction reads management parameters from q.
func ParseAction(q url.Values) Action {
	return Action{
		Instance: q.Get(ParamInstance),
		Name:     curation.SanitizeKey(q.Get(ParamAction)),
		Arg:      curation.SanitizeKey(q.Get(ParamArg)),
		Token:    q.Get(ParamToken),
	}
}

// EditMode reports whether the request asks for edit mode. Any action
// implies it.
func (a Action) EditMode() bool { return a.Name != "" }

// Targets reports whether the action is addressed to instance.
func (a Action) Targets(instance string) bool {
	return instance != "" && a.Instance == instance
}

// linkBuilder renders management links relative to the current page.
type linkBuilder struct {
	base     url.URL
	query    url.Values
	instance string
	token    string
}

func newLinkBuilder(base *url.URL, query url.Values, instance, token string) linkBuilder {
	lb := linkBuilder{instance: instance, token: token, query: url.Values{}}
	if base != nil {
		lb.base = *base
	}
	for k, vs := range query {
		lb.query[k] = append([]string(nil), vs...)
	}
	return lb
}

// link returns the page URL with management args set; an empty action
// drops action and arg, which leaves edit mode.
func (lb linkBuilder) link(action, arg string) string {
	q := url.Values{}
	for k, vs := range lb.query {
		q[k] = vs
	}
	q.Set(ParamInstance, lb.instance)
	q.Set(ParamToken, lb.token)
	if action == "" {
		q.Del(ParamAction)
		q.Del(ParamArg)
	} else {
		q.Set(ParamAction, action)
		q.Set(ParamArg, arg)
	}
	u := lb.base
	u.RawQuery = q.Encode()
	return u.String()
}
