package domain

import "strings"

// RemoteItem identifies one fetchable file by its path relative to the
// remote server root, e.g. /sas/dr12/boss/spectro/redux/v5_7_0/spAll-v5_7_0.dat.gz
type RemoteItem string

func (i RemoteItem) String() string { return string(i) }

// Key returns the item as an object key for the local mirror (no leading slash).
func (i RemoteItem) Key() string {
	return strings.TrimLeft(string(i), "/")
}

// JobChunk is the contiguous run of items assigned to exactly one worker.
type JobChunk struct {
	Index int
	Items []RemoteItem
}

func (c JobChunk) Len() int { return len(c.Items) }
