package router

import (
	"hash/fnv"
	"sort"
	"strconv"
)

// virtualNodesPerEndpoint spreads each configured server across enough
// ring positions to keep the key distribution reasonably even; 160 is the
// figure libmemcached and its ports commonly settle on.
const virtualNodesPerEndpoint = 160

// ring is a stable consistent-hash ring over a fixed endpoint set, built
// with the standard library's hash/fnv — no third-party consistent-hashing
// library appears anywhere in the reference corpus for this concern, so
// this is one of the few components grounded on stdlib rather than an
// example repo (see DESIGN.md).
type ring struct {
	points  []uint64
	byPoint map[uint64]int // ring point -> endpoint index
	labels  []string
}

func newRing(labels []string) *ring {
	r := &ring{byPoint: make(map[uint64]int, len(labels)*virtualNodesPerEndpoint), labels: labels}
	for idx, label := range labels {
		for v := 0; v < virtualNodesPerEndpoint; v++ {
			point := fnvHash(label + "#" + strconv.Itoa(v))
			r.points = append(r.points, point)
			r.byPoint[point] = idx
		}
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i] < r.points[j] })
	return r
}

// endpointFor returns the index of the endpoint that owns key: the first
// ring point at or after hash(key), wrapping around to the first point.
func (r *ring) endpointFor(key string) int {
	if len(r.points) == 0 {
		return -1
	}
	h := fnvHash(key)
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if i == len(r.points) {
		i = 0
	}
	return r.byPoint[r.points[i]]
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
