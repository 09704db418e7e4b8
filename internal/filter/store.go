package filter

// Store is the identity Filter: STORE compression passes bytes through
// unchanged.
type Store struct{}

// NewStoreEncoder returns a Filter that performs no compression.
func NewStoreEncoder() *Store { return &Store{} }

// NewStoreDecoder returns a Filter that performs no decompression.
func NewStoreDecoder() *Store { return &Store{} }

func (s *Store) Push(p []byte) ([]byte, error) { return p, nil }

func (s *Store) Finish() ([]byte, error) { return nil, nil }
