package auth

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
)

// Directive property names, as npm-protocol clients spell them.
const (
	PropAlwaysAuth = "always-auth"
	PropUsername   = "username"
	PropPassword   = "_password"
	PropEmail      = "email"
)

// Directives maps "{scope}:{property}" to a value for every configured
// registry. It is built once and only read afterwards.
type Directives map[string]string

// Scope returns the key a registry's credentials are filed under: the URL
// with its scheme removed, keeping everything from the first "//".
func Scope(rawURL string) string {
	if i := strings.Index(rawURL, "//"); i >= 0 {
		return rawURL[i:]
	}
	return "//" + rawURL
}

// BuildDirectives emits the four directives for each endpoint and merges
// them into one mapping.
func BuildDirectives(endpoints ...Endpoint) Directives {
	d := make(Directives, 4*len(endpoints))
	for _, ep := range endpoints {
		scope := Scope(ep.URL)
		email := ep.Credential.Email
		if email == "" {
			email = DefaultEmail
		}
		d[scope+":"+PropAlwaysAuth] = strconv.FormatBool(ep.Credential.AlwaysAuth)
		d[scope+":"+PropUsername] = ep.Credential.Username
		d[scope+":"+PropPassword] = base64.StdEncoding.EncodeToString([]byte(ep.Credential.Password))
		d[scope+":"+PropEmail] = email
	}
	return d
}

// Credentials finds the credential that applies to requestURL. The lookup
// starts at "//host/full/path/" and walks up one path segment at a time,
// so the most specific configured scope wins.
func (d Directives) Credentials(requestURL string) (username, password string, ok bool) {
	for _, scope := range candidateScopes(requestURL) {
		user, hasUser := d[scope+":"+PropUsername]
		encoded, hasPass := d[scope+":"+PropPassword]
		if !hasUser || !hasPass {
			continue
		}
		pass, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		return user, string(pass), true
	}
	return "", "", false
}

// AuthHeader returns the basic Authorization header for requestURL, or
// empty strings when no scope matches. Its signature matches the auth hooks
// of the registry and artifact clients.
func (d Directives) AuthHeader(requestURL string) (headerName, headerValue string) {
	user, pass, ok := d.Credentials(requestURL)
	if !ok {
		return "", ""
	}
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return "Authorization", "Basic " + token
}

// Email returns the email configured for the scope matching requestURL.
func (d Directives) Email(requestURL string) string {
	for _, scope := range candidateScopes(requestURL) {
		if _, ok := d[scope+":"+PropUsername]; !ok {
			continue
		}
		return d[scope+":"+PropEmail]
	}
	return ""
}

func candidateScopes(requestURL string) []string {
	u, err := url.Parse(requestURL)
	if err != nil || u.Host == "" {
		return nil
	}

	path := strings.TrimSuffix(u.EscapedPath(), "/")
	var scopes []string
	for {
		base := "//" + u.Host + path
		// Configured scopes may or may not carry a trailing slash.
		scopes = append(scopes, base+"/", base)
		if path == "" {
			break
		}
		path = path[:strings.LastIndex(path, "/")]
	}
	return scopes
}
