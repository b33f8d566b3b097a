package mirror

import "github.com/agentworkforce/recordmirror/internal/records"

// DefaultSeedBoundary is the highest id of the remote seed dataset.
const DefaultSeedBoundary = 10

type Origin int

const (
	RemoteOrigin Origin = iota + 1
	LocalOrigin
)

func (o Origin) String() string {
	switch o {
	case RemoteOrigin:
		return "remote"
	case LocalOrigin:
		return "local"
	default:
		return "unknown"
	}
}

// OriginClassifier decides whether the remote source knows a record. It is a
// threshold, not a registry: ids up to Boundary are treated as remote, so it
// misclassifies if the remote ever allocates ids above the boundary.
type OriginClassifier struct {
	Boundary int
}

func NewOriginClassifier(boundary int) OriginClassifier {
	if boundary <= 0 {
		boundary = DefaultSeedBoundary
	}
	return OriginClassifier{Boundary: boundary}
}

func (c OriginClassifier) Classify(id int) Origin {
	boundary := c.Boundary
	if boundary <= 0 {
		boundary = DefaultSeedBoundary
	}
	if id <= boundary {
		return RemoteOrigin
	}
	return LocalOrigin
}

// NextID is one more than the larger of the highest id in recs and floor.
// The store passes its high-water mark as floor so ids are never reused after
// the newest record is deleted.
func NextID(recs []records.Record, floor int) int {
	highest := floor
	for _, r := range recs {
		if r.ID > highest {
			highest = r.ID
		}
	}
	if highest < 0 {
		highest = 0
	}
	return highest + 1
}
