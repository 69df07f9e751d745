// Package artifact implements the stored form of artifacts: a JSON encoding,
// a content fingerprint, and an ArtifactStore built over any BlobStore.
package artifact

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/aretw0/flowgraph/pkg/domain"
)

const typeKey = "@type"

var (
	mu       sync.RWMutex
	byName   = map[string]reflect.Type{}
	nameByTy = map[reflect.Type]string{}
)

func init() {
	Register[domain.ParallelUBF]("parallel_ubf")
}

// Register makes values of type T round-trip with their concrete type instead
// of decoding as generic maps. Foreach sources implementing domain.Indexable,
// domain.Iterable or domain.UnboundedInput must be registered: split tasks load
// them back from the datastore and need the concrete type to iterate.
func Register[T any](name string) {
	t := reflect.TypeFor[T]()
	mu.Lock()
	defer mu.Unlock()
	byName[name] = t
	nameByTy[t] = name
}

// Registered reports whether the concrete type of v was registered.
func Registered(v any) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := nameByTy[reflect.TypeOf(v)]
	return ok
}

type envelope struct {
	Type  string          `json:"@type"`
	Value json.RawMessage `json:"value"`
}

// Encode converts a value into its stored form.
func Encode(v any) (domain.Blob, error) {
	var (
		data []byte
		err  error
	)
	mu.RLock()
	name, registered := nameByTy[reflect.TypeOf(v)]
	mu.RUnlock()

	if registered {
		raw, merr := json.Marshal(v)
		if merr != nil {
			return domain.Blob{}, fmt.Errorf("encode %s: %w", name, merr)
		}
		data, err = json.Marshal(envelope{Type: name, Value: raw})
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return domain.Blob{}, fmt.Errorf("encode artifact: %w", err)
	}
	return domain.Blob{Fingerprint: Fingerprint(data), Data: data}, nil
}

// Decode converts a stored form back into a value.
// Whole numbers decode as int, other numbers as float64.
func Decode(b domain.Blob) (any, error) {
	if t, raw, ok := registeredType(b.Data); ok {
		ptr := reflect.New(t)
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t, err)
		}
		return ptr.Elem().Interface(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(b.Data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return normalize(v), nil
}

// DecodeInto unmarshals a stored form into out.
func DecodeInto(b domain.Blob, out any) error {
	if _, raw, ok := registeredType(b.Data); ok {
		return json.Unmarshal(raw, out)
	}
	return json.Unmarshal(b.Data, out)
}

// Fingerprint is the content hash used to compare artifacts across branches.
func Fingerprint(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func registeredType(data []byte) (reflect.Type, json.RawMessage, bool) {
	if len(data) == 0 || data[0] != '{' || !bytes.Contains(data, []byte(typeKey)) {
		return nil, nil, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return nil, nil, false
	}
	mu.RLock()
	t, ok := byName[env.Type]
	mu.RUnlock()
	return t, env.Value, ok
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	default:
		return v
	}
}
