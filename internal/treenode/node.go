package treenode

// Flags is the node bitset from spec §3: a node's lifecycle and role are
// both carried here rather than in separate booleans, the way the teacher
// packs Ensemble/Result state into small integer fields instead of a grab
// bag of bools (internal/dynamo/types.go's Config/Result).
type Flags uint16

const (
	Leaf Flags = 1 << iota
	HasParticle
	TopTree
	TopTreeLeaf
	TopTreeLeafRemote
	SkipBranch
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// NotExist marks an absent child slot, an absent resident particle, or an
// absent first_child. RootSibling marks the end of a threaded traversal at
// the root. Both are the same sentinel value; spec §3/§4.4.4 hold them apart
// only by which field is being read.
const (
	NotExist    int32 = -1
	RootSibling int32 = -1
)

// MaxChildren is 2^dim for the largest supported dimension (3).
const MaxChildren = 8

// Node is a fixed-size record with two lifecycles, exactly as spec §3
// describes: Children/Pid are valid before update_moments runs over the
// node; Mass/COM/FirstChild/NextSibling are valid after. Flags discriminates
// which reading is correct — nothing after update_moments may consult
// Children, and nothing before it may consult FirstChild/NextSibling.
type Node struct {
	Flags  Flags
	Width  float64
	Center [3]float64

	// Build-time payload.
	Children [MaxChildren]int32
	Pid      int32

	// Moment-time payload (valid once update_moments has visited this node).
	Mass       float64
	COM        [3]float64
	FirstChild int32
	NextSibling int32

	// RemoteRow is set on TopTreeLeaf nodes to their row index in the
	// Remote-Node Table (spec §9 open question (a)): the export walk threads
	// the destination through this field rather than overloading any other.
	RemoteRow int32
}

func emptyNode() Node {
	n := Node{Pid: NotExist, FirstChild: NotExist, NextSibling: NotExist, RemoteRow: NotExist}
	for i := range n.Children {
		n.Children[i] = NotExist
	}
	return n
}
