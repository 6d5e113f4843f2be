package impl

import (
	"sync"

	"go.dedis.ch/kademlia/types"
)

// valueStore is the local value map the background responder consults for
// FIND_VALUE and updates for STORE, spec.md §4.3. Grounded in the teacher's
// SafeByteMap (peer/impl/dht_data_structures.go), narrowed to the single
// set/get it actually needs here — the teacher's Append (building a
// MetafileSep-joined address list for chunked-file hosting) has no analog
// once UploadDHT/DownloadDHT are dropped (SPEC_FULL.md).
//
// quota bounds how many distinct keys set will accept before refusing new
// ones (SPEC_FULL.md's StorageQuota); 0 means unbounded. An update to an
// already-held key is never refused.
type valueStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int
}

func newValueStore(quota int) *valueStore {
	return &valueStore{values: make(map[string][]byte), quota: quota}
}

// set records value under key, refusing a brand new key once the store
// already holds quota distinct keys.
func (s *valueStore) set(key types.Identifier, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, exists := s.values[k]; !exists && s.quota > 0 && len(s.values) >= s.quota {
		return
	}
	s.values[k] = value
}

func (s *valueStore) get(key types.Identifier) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key.String()]
	return v, ok
}
