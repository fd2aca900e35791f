package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Key is a logical-space identifier (kind, id), where id is either a
// uuid.UUID or a plain string. Keys are interned by their serialized
// string form: ParseKey always returns the same *Key for equal byte
// forms, satisfying invariant 9 (Key(str(k)) is k).
type Key struct {
	Kind TypeName
	ID   any // uuid.UUID or string

	str string // cached base64url form, computed once at construction
}

var (
	keyInternMu sync.Mutex
	keyIntern   = make(map[string]*Key)
)

// NewKey interns and returns the Key for (kind, id). id must be a
// uuid.UUID or a string.
func NewKey(kind TypeName, id any) (*Key, error) {
	switch id.(type) {
	case uuid.UUID, string:
	default:
		return nil, fmt.Errorf("codec: key id must be uuid.UUID or string, got %T: %w", id, ErrType)
	}
	k := &Key{Kind: kind, ID: id}
	s, err := k.encode()
	if err != nil {
		return nil, err
	}
	k.str = s
	return intern(k)
}

func intern(k *Key) (*Key, error) {
	keyInternMu.Lock()
	defer keyInternMu.Unlock()
	if existing, ok := keyIntern[k.str]; ok {
		return existing, nil
	}
	keyIntern[k.str] = k
	return k, nil
}

// ParseKey decodes a base64url key string (as produced by String) and
// interns the result.
func ParseKey(s string) (*Key, error) {
	keyInternMu.Lock()
	if existing, ok := keyIntern[s]; ok {
		keyInternMu.Unlock()
		return existing, nil
	}
	keyInternMu.Unlock()

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("codec: decode key %q: %w", s, ErrType)
	}
	r := bytes.NewReader(raw)
	kindStr, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("codec: decode key %q kind: %w", s, err)
	}
	branch, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("codec: decode key %q id branch: %w", s, err)
	}
	var id any
	switch branch {
	case 0: // string
		id, err = readString(r)
	case 1: // uuid (fixed 16 bytes)
		var b [16]byte
		if _, rerr := io.ReadFull(r, b[:]); rerr != nil {
			return nil, fmt.Errorf("codec: decode key %q uuid: %w", s, rerr)
		}
		id = uuid.UUID(b)
	default:
		return nil, fmt.Errorf("codec: decode key %q: bad id branch %d: %w", s, branch, ErrType)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: decode key %q id: %w", s, err)
	}

	k := &Key{Kind: NewTypeName(kindStr), ID: id, str: s}
	return intern(k)
}

// encode produces the base64url (no padding) form: the Avro binary
// encoding of {kind: string, id: union[string, fixed(16)]}.
func (k *Key) encode() (string, error) {
	var buf bytes.Buffer
	writeString(&buf, k.Kind.String())
	switch id := k.ID.(type) {
	case string:
		writeVarint(&buf, 0)
		writeString(&buf, id)
	case uuid.UUID:
		writeVarint(&buf, 1)
		buf.Write(id[:])
	default:
		return "", fmt.Errorf("codec: key id must be uuid.UUID or string, got %T: %w", k.ID, ErrType)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// String returns the canonical base64url (no padding) form.
func (k *Key) String() string { return k.str }

// Less implements the total order on serialized Key bytes that manifest
// and changeset key ordering (invariant 2) relies on.
func (k *Key) Less(other *Key) bool { return k.str < other.str }

// Equal reports whether two keys have the same serialized form. Because
// Keys are interned, pointer equality already implies this, but Equal
// lets callers compare Keys decoded through separate paths before
// interning has had a chance to unify them.
func (k *Key) Equal(other *Key) bool { return k.str == other.str }
