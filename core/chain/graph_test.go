package chain

import "testing"

func TestGraphStepLookup(t *testing.T) {
	g := NewGraph(Chain{ID: 1, FirstStepID: 10}, []*Step{
		{ID: 10, ChainID: 1, Name: "start"},
		{ID: 11, ChainID: 1, Name: "next"},
	})

	root, ok := g.Root()
	if !ok || root.ID != 10 {
		t.Fatalf("root = %v, %v", root, ok)
	}
	if _, ok := g.StepByID(11); !ok {
		t.Fatal("expected step 11")
	}
	if _, ok := g.StepByID(99); ok {
		t.Fatal("unexpected step 99")
	}
	if _, ok := g.StepByID(0); ok {
		t.Fatal("id 0 must never resolve")
	}
	if g.Len() != 2 {
		t.Fatalf("len = %d", g.Len())
	}
}

func TestGraphTreeCutsCycle(t *testing.T) {
	// A -> button -> B -> next -> A
	g := NewGraph(Chain{ID: 1, FirstStepID: 1}, []*Step{
		{ID: 1, ChainID: 1, Name: "A", Message: "pick", Buttons: []Button{
			{ID: 100, StepID: 1, Text: "go", CallbackID: "cb-go", NextStepID: 2},
		}},
		{ID: 2, ChainID: 1, Name: "B", Message: "again", NextStepID: 1},
	})

	tree := g.Tree()
	if tree == nil {
		t.Fatal("expected tree")
	}
	if tree.ID != 1 || tree.Truncated {
		t.Fatalf("root = %+v", tree)
	}
	if len(tree.Buttons) != 1 {
		t.Fatalf("buttons = %d", len(tree.Buttons))
	}
	b := tree.Buttons[0].NextStep
	if b == nil || b.ID != 2 || b.Truncated {
		t.Fatalf("step B = %+v", b)
	}
	back := b.NextStep
	if back == nil || back.ID != 1 {
		t.Fatalf("back edge = %+v", back)
	}
	if !back.Truncated {
		t.Fatal("revisited node must be truncated")
	}
	if back.NextStep != nil || len(back.Buttons) != 0 {
		t.Fatal("truncated node must not expand")
	}
}

func TestGraphTreeDepthCap(t *testing.T) {
	// A strictly linear chain longer than the recursion cap.
	steps := make([]*Step, 0, maxTreeDepth+10)
	for i := 1; i <= maxTreeDepth+10; i++ {
		s := &Step{ID: int64(i), ChainID: 1, Name: "s"}
		if i < maxTreeDepth+10 {
			s.NextStepID = int64(i + 1)
		}
		steps = append(steps, s)
	}
	g := NewGraph(Chain{ID: 1, FirstStepID: 1}, steps)

	node := g.Tree()
	depth := 0
	for node != nil {
		if node.Truncated {
			break
		}
		depth++
		node = node.NextStep
	}
	if node == nil {
		t.Fatal("expected a truncated tail")
	}
	if depth != maxTreeDepth {
		t.Fatalf("expanded depth = %d, want %d", depth, maxTreeDepth)
	}
}

func TestGraphTreeNoRoot(t *testing.T) {
	g := NewGraph(Chain{ID: 1}, []*Step{{ID: 5, ChainID: 1}})
	if g.Tree() != nil {
		t.Fatal("chain without first step must serialize to nil")
	}
}
