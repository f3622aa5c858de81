package chain

// Graph holds a chain's steps in a flat table keyed by step id. Steps
// reference each other by id only, so shared targets and cycles are
// representable without nested ownership.
type Graph struct {
	chain Chain
	steps map[int64]*Step
}

// maxTreeDepth caps Tree recursion independently of the visited set. A
// legitimate chain never nests this deep; anything beyond it is a
// mis-configured graph and gets truncated.
const maxTreeDepth = 64

// NewGraph assembles a graph from a chain header and its steps.
func NewGraph(c Chain, steps []*Step) *Graph {
	byID := make(map[int64]*Step, len(steps))
	for _, s := range steps {
		if s == nil {
			continue
		}
		byID[s.ID] = s
	}
	return &Graph{chain: c, steps: byID}
}

// Chain returns the chain header this graph belongs to.
func (g *Graph) Chain() Chain { return g.chain }

// Len reports the number of steps in the graph.
func (g *Graph) Len() int { return len(g.steps) }

// Root resolves the chain's configured first step.
func (g *Graph) Root() (*Step, bool) {
	return g.StepByID(g.chain.FirstStepID)
}

// StepByID resolves a step node by id.
func (g *Graph) StepByID(id int64) (*Step, bool) {
	if id == 0 {
		return nil, false
	}
	s, ok := g.steps[id]
	return s, ok
}

// StepIDs lists the ids of all steps in the graph, in no particular order.
func (g *Graph) StepIDs() []int64 {
	ids := make([]int64, 0, len(g.steps))
	for id := range g.steps {
		ids = append(ids, id)
	}
	return ids
}

// Validate checks every step's structural invariants.
func (g *Graph) Validate() error {
	for _, s := range g.steps {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TreeNode is the nested serialization of a step used by the dashboard's
// chain visualization. Cycles are cut by marking the repeated node as
// truncated instead of recursing into it again.
type TreeNode struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Message   string      `json:"message"`
	TextInput bool        `json:"text_input"`
	Truncated bool        `json:"truncated,omitempty"`
	Buttons   []TreeButton `json:"buttons"`
	NextStep  *TreeNode   `json:"next_step,omitempty"`
}

// TreeButton mirrors a button inside the nested serialization.
type TreeButton struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	CallbackID string    `json:"callback_id"`
	NextStep   *TreeNode `json:"next_step,omitempty"`
}

// Tree serializes the graph into a nested structure rooted at the chain's
// first step. Each step is expanded at most once; repeats and overly deep
// branches become truncated stubs, so serialization terminates on any graph.
func (g *Graph) Tree() *TreeNode {
	root, ok := g.Root()
	if !ok {
		return nil
	}
	visited := make(map[int64]struct{}, len(g.steps))
	return g.buildNode(root, visited, 0)
}

func (g *Graph) buildNode(s *Step, visited map[int64]struct{}, depth int) *TreeNode {
	if s == nil {
		return nil
	}
	if _, seen := visited[s.ID]; seen || depth >= maxTreeDepth {
		return &TreeNode{ID: s.ID, Name: s.Name, Truncated: true, Buttons: []TreeButton{}}
	}
	visited[s.ID] = struct{}{}

	node := &TreeNode{
		ID:        s.ID,
		Name:      s.Name,
		Message:   s.Message,
		TextInput: s.TextInput,
		Buttons:   make([]TreeButton, 0, len(s.Buttons)),
	}
	for _, b := range s.Buttons {
		tb := TreeButton{ID: b.ID, Text: b.Text, CallbackID: b.CallbackID}
		if next, ok := g.StepByID(b.NextStepID); ok {
			tb.NextStep = g.buildNode(next, visited, depth+1)
		}
		node.Buttons = append(node.Buttons, tb)
	}
	if next, ok := g.StepByID(s.NextStepID); ok {
		node.NextStep = g.buildNode(next, visited, depth+1)
	}
	return node
}
