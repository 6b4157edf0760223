// Package npmtest provides an in-memory npm-protocol registry for tests.
package npmtest

import (
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/git-pkgs/regcopy/internal/core"
)

// Publish is one PUT the registry received.
type Publish struct {
	Name        string
	Rev         string
	Versions    []string
	Attachments map[string][]byte
	Maintainers json.RawMessage
	Body        map[string]json.RawMessage
	Status      int
}

type document struct {
	rev      int
	versions *core.VersionMap
	distTags map[string]string
}

// Registry is an npm registry served by an httptest.Server. It implements
// reads, tarball downloads and the publish protocol including the 409 and
// revision update dance.
type Registry struct {
	Server *httptest.Server

	// Username and Password, when set, are required as basic auth on
	// every request.
	Username string
	Password string

	// PublishStatus, when non-zero, is returned for every PUT.
	PublishStatus int

	mu        sync.Mutex
	docs      map[string]*document
	tarballs  map[string][]byte
	publishes []Publish
	requests  []string
}

// New starts a registry. It is closed when the test ends.
func New(t interface{ Cleanup(func()) }) *Registry {
	r := &Registry{
		docs:     make(map[string]*document),
		tarballs: make(map[string][]byte),
	}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Server.Close)
	return r
}

// URL returns the registry root with a trailing slash.
func (r *Registry) URL() string {
	return r.Server.URL + "/"
}

// TarballURL returns where AddVersion stores the archive of name@version.
func (r *Registry) TarballURL(name, version string) string {
	short := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		short = name[i+1:]
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", r.Server.URL, name, short, version)
}

// AddVersion stores a published version. meta is extended with name,
// version and a dist block describing tarball.
func (r *Registry) AddVersion(name, version string, meta map[string]any, tarball []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields := []core.Field{
		{Key: "name", Value: mustJSON(name)},
		{Key: "version", Value: mustJSON(version)},
	}
	for k, v := range meta {
		fields = append(fields, core.Field{Key: k, Value: mustJSON(v)})
	}
	tbURL := r.TarballURL(name, version)
	fields = append(fields, core.Field{Key: "dist", Value: mustJSON(core.Dist{
		Tarball:   tbURL,
		Shasum:    Shasum(tarball),
		Integrity: Integrity(tarball),
	})})

	doc := r.doc(name)
	doc.versions.Set(version, core.NewVersionRecord(fields...))
	doc.distTags["latest"] = version
	doc.rev++
	r.tarballs[strings.TrimPrefix(tbURL, r.Server.URL)] = tarball
}

// SetTarball replaces the archive served at the URL of name@version.
func (r *Registry) SetTarball(name, version string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tarballs[strings.TrimPrefix(r.TarballURL(name, version), r.Server.URL)] = data
}

// Versions returns the versions of name in publication order.
func (r *Registry) Versions(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[name]
	if !ok {
		return nil
	}
	return doc.versions.Versions()
}

// Version returns the stored metadata of name@version.
func (r *Registry) Version(name, version string) (core.VersionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[name]
	if !ok {
		return core.VersionRecord{}, false
	}
	return doc.versions.Get(version)
}

// Publishes returns every PUT received so far.
func (r *Registry) Publishes() []Publish {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Publish(nil), r.publishes...)
}

// Requests returns "METHOD path" for every request received so far.
func (r *Registry) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// TarballRequests counts archive downloads.
func (r *Registry) TarballRequests() int {
	n := 0
	for _, req := range r.Requests() {
		if strings.HasPrefix(req, http.MethodGet+" ") && strings.Contains(req, "/-/") {
			n++
		}
	}
	return n
}

func (r *Registry) doc(name string) *document {
	doc, ok := r.docs[name]
	if !ok {
		doc = &document{versions: core.NewVersionMap(), distTags: make(map[string]string)}
		r.docs[name] = doc
	}
	return doc
}

func (r *Registry) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req.Method+" "+req.URL.Path)

	if r.Username != "" {
		user, pass, ok := req.BasicAuth()
		if !ok || user != r.Username || pass != r.Password {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	path := req.URL.Path
	switch {
	case req.Method == http.MethodGet && strings.Contains(path, "/-/"):
		data, ok := r.tarballs[path]
		if !ok {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	case req.Method == http.MethodGet:
		r.serveDocument(w, strings.TrimPrefix(path, "/"))
	case req.Method == http.MethodPut:
		r.servePublish(w, req, strings.TrimPrefix(path, "/"))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}

func (r *Registry) serveDocument(w http.ResponseWriter, name string) {
	doc, ok := r.docs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	versions, err := json.Marshal(doc.versions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body := map[string]json.RawMessage{
		"_id":       mustJSON(name),
		"_rev":      mustJSON(r.rev(doc)),
		"name":      mustJSON(name),
		"dist-tags": mustJSON(doc.distTags),
		"versions":  versions,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

type attachment struct {
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
	Length      int    `json:"length"`
}

type publishBody struct {
	Rev         string                        `json:"_rev"`
	Name        string                        `json:"name"`
	DistTags    map[string]string             `json:"dist-tags"`
	Versions    map[string]core.VersionRecord `json:"versions"`
	Attachments map[string]attachment         `json:"_attachments"`
	Maintainers json.RawMessage               `json:"maintainers"`
}

func (r *Registry) servePublish(w http.ResponseWriter, req *http.Request, name string) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, _ := json.Marshal(raw)
	var body publishBody
	if err := json.Unmarshal(data, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pub := Publish{
		Name:        name,
		Rev:         body.Rev,
		Attachments: make(map[string][]byte),
		Maintainers: body.Maintainers,
		Body:        raw,
	}
	for v := range body.Versions {
		pub.Versions = append(pub.Versions, v)
	}
	for file, a := range body.Attachments {
		decoded, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad attachment")
			return
		}
		pub.Attachments[file] = decoded
	}

	status := r.applyPublish(name, body, pub.Attachments)
	pub.Status = status
	r.publishes = append(r.publishes, pub)

	if status != http.StatusCreated {
		writeError(w, status, http.StatusText(status))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (r *Registry) applyPublish(name string, body publishBody, files map[string][]byte) int {
	if r.PublishStatus != 0 {
		return r.PublishStatus
	}
	if body.Name != name || len(body.Versions) == 0 {
		return http.StatusBadRequest
	}

	doc, exists := r.docs[name]
	if exists {
		// Updating an existing document requires its current revision.
		if body.Rev == "" || body.Rev != r.rev(doc) {
			return http.StatusConflict
		}
	}

	var added []string
	for v := range body.Versions {
		if exists && doc.versions.Has(v) {
			continue
		}
		added = append(added, v)
	}
	if len(added) == 0 {
		return http.StatusConflict
	}

	doc = r.doc(name)
	for _, v := range added {
		doc.versions.Set(v, body.Versions[v])
	}
	for tag, v := range body.DistTags {
		doc.distTags[tag] = v
	}
	for file, data := range files {
		r.tarballs["/"+name+"/-/"+file] = data
	}
	doc.rev++
	return http.StatusCreated
}

func (r *Registry) rev(doc *document) string {
	return fmt.Sprintf("%d-fake", doc.rev)
}

// Shasum returns the hex sha1 of data, as registries advertise it.
func Shasum(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Integrity returns the sha512 SRI string of data.
func Integrity(data []byte) string {
	sum := sha512.Sum512(data)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
