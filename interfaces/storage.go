package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentID is the content address of a stored payload. Locally computed ids are
// CIDv1 with the raw codec and a sha2-256 multihash, which is what IPFS returns
// for raw-leaf single-block adds.
type ContentID struct {
	c cid.Cid
}

// ComputeContentID calculates the content ID of data.
func ComputeContentID(data []byte) ContentID {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// sha2-256 is always registered
		panic(fmt.Sprintf("multihash sum: %v", err))
	}
	return ContentID{c: cid.NewCidV1(cid.Raw, mh)}
}

// ParseContentID parses the string form of a CID (any version).
func ParseContentID(s string) (ContentID, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid content ID %q: %w", s, err)
	}
	return ContentID{c: c}, nil
}

// ContentIDFromCid wraps a CID returned by a content network.
func ContentIDFromCid(c cid.Cid) ContentID {
	return ContentID{c: c}
}

// Cid returns the underlying CID.
func (id ContentID) Cid() cid.Cid {
	return id.c
}

// Defined reports whether the id holds a CID.
func (id ContentID) Defined() bool {
	return id.c.Defined()
}

// String returns the multibase form of the CID, or "" when undefined.
func (id ContentID) String() string {
	if !id.c.Defined() {
		return ""
	}
	return id.c.String()
}

// Equal compares two content IDs.
func (id ContentID) Equal(other ContentID) bool {
	return id.c.Equals(other.c)
}

// Verify reports whether data hashes to this id. Ids using a hash function other
// than sha2-256 are recomputed with their own prefix.
func (id ContentID) Verify(data []byte) bool {
	if !id.c.Defined() {
		return false
	}
	sum, err := id.c.Prefix().Sum(data)
	if err != nil {
		return false
	}
	return sum.Hash().HexString() == id.c.Hash().HexString()
}

func (id ContentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ContentID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*id = ContentID{}
		return nil
	}
	parsed, err := ParseContentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %w", ErrInvalidLocationURI, err)
	}

	scheme := parsed.Scheme
	switch scheme {
	case "file", "s3", "ipfs", "vault", "badger":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides content-addressed data storage for encrypted payloads.
type StorageBackend interface {
	// Fetch retrieves data by content ID.
	Fetch(ctx context.Context, id ContentID) ([]byte, error)

	// Store saves data and returns its content ID.
	Store(ctx context.Context, data []byte) (ContentID, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, vault://, badger://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}
