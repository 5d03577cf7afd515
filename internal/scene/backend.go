package scene

// Kind identifies the collection an entity belongs to. Ids are unique per
// kind, not across kinds.
type Kind string

const (
	KindNode  Kind = "node"
	KindLoop  Kind = "loop"
	KindLever Kind = "lever"
	KindFlow  Kind = "flow"
)

// Backend owns the drawing resources behind scene entities. Create is called
// once when an id first appears and Release when it leaves the state; all
// other changes are updates in place read from Snapshot.
type Backend interface {
	Create(kind Kind, id string)
	Release(kind Kind, id string)
}

type nopBackend struct{}

func (nopBackend) Create(Kind, string)  {}
func (nopBackend) Release(Kind, string) {}

// Ticker is anything driven by elapsed seconds per animation frame.
type Ticker interface {
	Tick(dt float64) error
}
