// Package roster implements the shared peer roster collaborator
// (§3, §6): a flat, bounded table keyed by IP, offering
// add_or_update/mark_inactive/prune_timed_out/get_active_count/
// get_by_index. It is out of the core's scope per spec.md §1, but
// the core depends on its contract, so this repo gives it a real,
// independently-tested implementation rather than a stub.
package roster

import (
	"sync"
	"time"

	"github.com/jabolina/go-lanmsg/internal/types"
)

// MaxPeers bounds the table — it is a flat array, not an unbounded map,
// matching the reference system's fixed-size storage discipline.
const MaxPeers = 64

// UpdateResult reports whether add_or_update added a new row, updated
// an existing one, or failed because the table is full.
type UpdateResult int

const (
	Added UpdateResult = iota
	Updated
	Full
)

// Roster is the bounded peer table. Safe for concurrent use: the
// engine's tick loop is single-threaded, but the CLI's UI callbacks
// (get_by_index, get_active_count) may run in a separate goroutine,
// so access is still guarded.
type Roster struct {
	mutex sync.RWMutex
	peers []types.Peer
	now   func() time.Time
}

// New builds an empty roster.
func New() *Roster {
	return &Roster{
		peers: make([]types.Peer, 0, MaxPeers),
		now:   time.Now,
	}
}

// AddOrUpdate implements add_or_update(ip, username) (§3).
func (r *Roster) AddOrUpdate(ip, username string) UpdateResult {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i := range r.peers {
		if r.peers[i].IP == ip {
			r.peers[i].Username = username
			r.peers[i].LastSeen = r.now()
			r.peers[i].Active = true
			return Updated
		}
	}

	if len(r.peers) >= MaxPeers {
		return Full
	}

	r.peers = append(r.peers, types.Peer{
		IP:       ip,
		Username: username,
		LastSeen: r.now(),
		Active:   true,
	})
	return Added
}

// MarkInactive implements mark_inactive(ip) (§3, used by the QUIT path
// in §8 scenario 4).
func (r *Roster) MarkInactive(ip string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i := range r.peers {
		if r.peers[i].IP == ip {
			r.peers[i].Active = false
			return true
		}
	}
	return false
}

// PruneTimedOut implements prune_timed_out(), called by the tick loop
// every RosterPruneInterval (§4.8 step 4). Peers silent for longer
// than timeout are marked inactive, not removed — the table is a
// fixed-size history, not a live-connection set.
func (r *Roster) PruneTimedOut(timeout time.Duration) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	now := r.now()
	pruned := 0
	for i := range r.peers {
		if r.peers[i].Active && now.Sub(r.peers[i].LastSeen) > timeout {
			r.peers[i].Active = false
			pruned++
		}
	}
	return pruned
}

// GetActiveCount implements get_active_count() (§3).
func (r *Roster) GetActiveCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	n := 0
	for _, p := range r.peers {
		if p.Active {
			n++
		}
	}
	return n
}

// GetByIndex implements get_by_index(i) -> peer (§3), for a UI
// peer-list widget to iterate without holding the lock.
func (r *Roster) GetByIndex(i int) (types.Peer, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if i < 0 || i >= len(r.peers) {
		return types.Peer{}, false
	}
	return r.peers[i], true
}

// Len reports the total number of rows, active or not.
func (r *Roster) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.peers)
}
