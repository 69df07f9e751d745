package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactedBlobs struct {
	next     ports.BlobStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks artifacts whose name matches one of the
// patterns, and map keys matching them inside other artifacts, when they are
// read. Writes pass through untouched, so it only suits read-only consumers
// such as the inspection servers.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.Datastore) ports.Datastore {
		return &blobWrapper{next: next, wrap: func(b ports.BlobStore) ports.BlobStore {
			return &redactedBlobs{next: b, patterns: patterns}
		}}
	}, nil
}

func (m *redactedBlobs) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	return m.next.Items(ctx)
}

func (m *redactedBlobs) SaveBlob(ctx context.Context, name string, blob domain.Blob) error {
	return m.next.SaveBlob(ctx, name, blob)
}

func (m *redactedBlobs) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	blob, err := m.next.LoadBlob(ctx, name)
	if err != nil {
		return domain.Blob{}, err
	}
	if m.matches(name) {
		return artifact.Encode(Mask)
	}
	v, err := artifact.Decode(blob)
	if err != nil {
		return domain.Blob{}, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return blob, nil
	}
	cloned := deepCopyMap(obj)
	if !m.maskMap(cloned) {
		return blob, nil
	}
	return artifact.Encode(cloned)
}

func (m *redactedBlobs) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskMap masks matching keys in place and reports whether anything changed.
func (m *redactedBlobs) maskMap(obj map[string]any) bool {
	changed := false
	for k, v := range obj {
		if m.matches(k) {
			obj[k] = Mask
			changed = true
			continue
		}
		if sub, ok := v.(map[string]any); ok && m.maskMap(sub) {
			changed = true
		}
	}
	return changed
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}
