package jwks

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

var (
	// ErrKeyNotFound is returned when a kid is absent from every cached
	// key set, even after a forced refresh.
	ErrKeyNotFound = errors.New("key not found")

	// ErrEmptyKeySet is returned when an endpoint responds with a JWKS
	// document that contains no usable keys. The caller treats this as a
	// fetch failure so previously cached keys survive.
	ErrEmptyKeySet = errors.New("jwks contains no usable keys")

	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// KeyRecord is a single public signing key from a JWKS document.
// Records are immutable once built; the materialized public key is shared
// by all lookups of the same key set.
type KeyRecord struct {
	KeyID     string
	KeyType   string
	Algorithm string
	Use       string

	public any
}

// Public returns the materialized verification key (*rsa.PublicKey or
// *ecdsa.PublicKey).
func (r KeyRecord) Public() any { return r.public }

// NewStaticKeyRecord builds a KeyRecord from already-materialized key
// material, bypassing JWKS parsing. Useful for static key setups and
// tests.
func NewStaticKeyRecord(kid string, pub any) KeyRecord {
	return KeyRecord{KeyID: kid, public: pub}
}

// keySet is the cached state for one endpoint: a kid-indexed snapshot of
// the last successful fetch. A refresh replaces the whole value, it never
// mutates one in place.
type keySet struct {
	url       string
	records   map[string]KeyRecord
	kids      []string // fetch order, for monitoring output
	fetchedAt time.Time
	ttl       time.Duration
}

func (s *keySet) fresh(now time.Time) bool {
	return now.Sub(s.fetchedAt) < s.ttl
}

// newKeySet converts a parsed JWKS into an immutable keySet. Keys whose
// material cannot be turned into a supported verification primitive are
// skipped; duplicate kids collapse last-fetched-wins.
func newKeySet(url string, set jwk.Set, now time.Time, ttl time.Duration) (*keySet, error) {
	ks := &keySet{
		url:       url,
		records:   make(map[string]KeyRecord, set.Len()),
		fetchedAt: now,
		ttl:       ttl,
	}
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		rec, err := newKeyRecord(key)
		if err != nil {
			continue
		}
		if _, dup := ks.records[rec.KeyID]; !dup {
			ks.kids = append(ks.kids, rec.KeyID)
		}
		ks.records[rec.KeyID] = rec
	}
	if len(ks.records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyKeySet, url)
	}
	return ks, nil
}

func newKeyRecord(key jwk.Key) (KeyRecord, error) {
	var raw any
	if err := key.Raw(&raw); err != nil {
		return KeyRecord{}, fmt.Errorf("materialize key %q: %w", key.KeyID(), err)
	}
	switch raw.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
	default:
		return KeyRecord{}, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, raw)
	}
	rec := KeyRecord{
		KeyID:   key.KeyID(),
		KeyType: key.KeyType().String(),
		Use:     key.KeyUsage(),
		public:  raw,
	}
	if alg := key.Algorithm(); alg != nil {
		rec.Algorithm = alg.String()
	}
	return rec, nil
}
