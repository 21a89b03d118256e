package service

import (
	"hash/fnv"
	"sync"
)

const defaultLockStripes = 64

// CredentialLocks serializes writes that touch the sessions of one
// credential. Ids hash onto a fixed set of mutexes so memory stays bounded.
type CredentialLocks struct {
	stripes []sync.Mutex
}

func NewCredentialLocks(stripes int) *CredentialLocks {
	if stripes <= 0 {
		stripes = defaultLockStripes
	}
	return &CredentialLocks{stripes: make([]sync.Mutex, stripes)}
}

// Lock blocks until the stripe for credentialID is held and returns its
// release func.
func (l *CredentialLocks) Lock(credentialID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(credentialID))
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
