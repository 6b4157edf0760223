package npm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/git-pkgs/regcopy/client"
	"github.com/git-pkgs/regcopy/internal/core"
)

// defaultTag is the dist-tag a published version is recorded under.
const defaultTag = "latest"

type attachment struct {
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
	Length      int    `json:"length"`
}

type publishDocument struct {
	ID          string                        `json:"_id"`
	Name        string                        `json:"name"`
	Description json.RawMessage               `json:"description,omitempty"`
	DistTags    map[string]string             `json:"dist-tags"`
	Versions    map[string]core.VersionRecord `json:"versions"`
	Readme      string                        `json:"readme"`
	Maintainers []Maintainer                  `json:"maintainers,omitempty"`
	Attachments map[string]attachment         `json:"_attachments"`
}

// Publish uploads meta and the archive read from tarball as a new version
// of name. The archive is read to the end; closing it stays with the
// caller. If the registry already holds the version the returned error
// wraps client.ErrConflict.
func (r *Registry) Publish(ctx context.Context, name string, meta core.VersionRecord, tarball *core.Tarball) error {
	version := meta.Version()
	if version == "" {
		return fmt.Errorf("publishing %s: metadata has no version", name)
	}
	if tarball == nil {
		return fmt.Errorf("publishing %s@%s: no tarball", name, version)
	}

	a, err := readArchive(tarball, r.maxTarball)
	if err != nil {
		return fmt.Errorf("publishing %s@%s: %w", name, version, err)
	}

	doc, err := r.buildDocument(name, version, meta, a)
	if err != nil {
		return fmt.Errorf("publishing %s@%s: %w", name, version, err)
	}

	url := r.urls.Package(name)
	r.logger.Debug("publishing", "package", name, "version", version, "bytes", len(a.data),
		"urls", client.BuildURLs(r.urls, name, version))
	err = r.client.PutJSON(ctx, url, doc, nil)
	if err == nil {
		return nil
	}
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) || !httpErr.IsConflict() {
		return fmt.Errorf("publishing %s@%s: %w", name, version, err)
	}

	// The document exists already. Merge into it unless the version is
	// there too.
	return r.publishMerged(ctx, name, version, doc)
}

func (r *Registry) buildDocument(name, version string, meta core.VersionRecord, a *archive) (*publishDocument, error) {
	entry, err := meta.With("_id", name+"@"+version)
	if err != nil {
		return nil, err
	}

	var maintainers []Maintainer
	if r.maintainer != nil {
		maintainers = []Maintainer{*r.maintainer}
		if entry, err = entry.With("maintainers", maintainers); err != nil {
			return nil, err
		}
	}

	entry, err = entry.With("dist", core.Dist{
		Tarball:   r.urls.PublishedTarball(name, version),
		Shasum:    a.shasum,
		Integrity: a.sha512,
	})
	if err != nil {
		return nil, err
	}

	description, _ := meta.Get("description")
	return &publishDocument{
		ID:          name,
		Name:        name,
		Description: description,
		DistTags:    map[string]string{defaultTag: version},
		Versions:    map[string]core.VersionRecord{version: entry},
		Readme:      meta.String("readme"),
		Maintainers: maintainers,
		Attachments: map[string]attachment{
			r.urls.Attachment(name, version): {
				ContentType: "application/octet-stream",
				Data:        base64.StdEncoding.EncodeToString(a.data),
				Length:      len(a.data),
			},
		},
	}, nil
}

func (r *Registry) publishMerged(ctx context.Context, name, version string, doc *publishDocument) error {
	var current map[string]json.RawMessage
	if err := r.client.GetJSON(ctx, r.urls.Write(name), &current); err != nil {
		return fmt.Errorf("publishing %s@%s: reading current document: %w", name, version, err)
	}

	var versions map[string]json.RawMessage
	if raw, ok := current["versions"]; ok {
		if err := json.Unmarshal(raw, &versions); err != nil {
			return fmt.Errorf("publishing %s@%s: decoding current versions: %w", name, version, err)
		}
	}
	if _, exists := versions[version]; exists {
		return &client.ConflictError{Name: name, Version: version}
	}

	merged, err := mergeDocument(current, doc)
	if err != nil {
		return fmt.Errorf("publishing %s@%s: %w", name, version, err)
	}

	r.logger.Debug("publishing into existing document", "package", name, "version", version)
	if err := r.client.PutJSON(ctx, r.urls.Package(name), merged, nil); err != nil {
		if client.KindOf(err) == client.KindConflict {
			return errors.Join(&client.ConflictError{Name: name, Version: version}, err)
		}
		return fmt.Errorf("publishing %s@%s: %w", name, version, err)
	}
	return nil
}

// mergeDocument overlays doc onto the registry's current document. Keyed
// collections are merged member by member, the current maintainers are
// kept and every other field is replaced.
func mergeDocument(current map[string]json.RawMessage, doc *publishDocument) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	merged := make(map[string]json.RawMessage, len(current)+len(fields))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range fields {
		switch k {
		case "dist-tags", "versions", "_attachments":
			m, err := mergeObjects(merged[k], v)
			if err != nil {
				return nil, fmt.Errorf("merging %s: %w", k, err)
			}
			merged[k] = m
		case "maintainers":
		default:
			merged[k] = v
		}
	}
	return merged, nil
}

func mergeObjects(base, overlay json.RawMessage) (json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	if len(base) > 0 && string(base) != "null" {
		if err := json.Unmarshal(base, &out); err != nil {
			return nil, err
		}
	}
	var add map[string]json.RawMessage
	if err := json.Unmarshal(overlay, &add); err != nil {
		return nil, err
	}
	for k, v := range add {
		out[k] = v
	}
	return json.Marshal(out)
}
