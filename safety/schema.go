package safety

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ferro-labs/policy-router/internal/cache"
)

const (
	// schemaResource is absolute so the compiler never resolves it against
	// the working directory.
	schemaResource = "mem://request/schema.json"
	// compiledCacheSize bounds the number of distinct schemas kept compiled.
	compiledCacheSize = 256
)

// compiled maps a schema's content hash to its compiled form.
var compiled = cache.NewMemory[*jsonschema.Schema](compiledCacheSize, 0)

// ValidateSchema validates payload against a JSON Schema document (draft-07
// semantics unless the schema declares otherwise). schema may be a decoded
// JSON value (map, slice, ...), raw JSON bytes, or a JSON string.
//
// On success it returns true and an empty error list. On failure it returns
// false and one message per violated leaf constraint, formatted as
// "<instance location>: <message>". A schema that fails to compile is
// reported the same way rather than as a Go error: validation failures are
// a normal outcome of routing, never a system error.
func ValidateSchema(payload any, schema any) (bool, []string) {
	raw, err := schemaBytes(schema)
	if err != nil {
		return false, []string{"invalid schema: " + err.Error()}
	}

	sch, err := compile(raw)
	if err != nil {
		return false, []string{"invalid schema: " + err.Error()}
	}

	doc, err := normalize(payload)
	if err != nil {
		return false, []string{"payload is not JSON-encodable: " + err.Error()}
	}

	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return false, leafMessages(ve)
		}
		return false, []string{err.Error()}
	}
	return true, []string{}
}

func compile(raw []byte) (*jsonschema.Schema, error) {
	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])
	if sch, ok := compiled.Get(key); ok {
		return sch, nil
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(schemaResource, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	sch, err := c.Compile(schemaResource)
	if err != nil {
		return nil, err
	}
	compiled.Set(key, sch)
	return sch, nil
}

func schemaBytes(schema any) ([]byte, error) {
	switch s := schema.(type) {
	case nil:
		return nil, errors.New("schema is empty")
	case []byte:
		return s, nil
	case json.RawMessage:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		return json.Marshal(s)
	}
}

// normalize round-trips v through encoding/json so the validator only ever
// sees the value shapes it understands (maps, slices, float64, ...).
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func leafMessages(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, leafMessages(c)...)
	}
	return out
}
