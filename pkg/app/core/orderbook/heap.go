package orderbook

// orderHeap implements heap.Interface over resting orders of one side.
// The order with the smallest SortKey sits on top.
// Use container/heap package to manipulate this heap (Init, Push, Pop, Remove)
type orderHeap []*Order

func (h orderHeap) Len() int           { return len(h) }
func (h orderHeap) Less(i, j int) bool { return h[i].key.Less(h[j].key) }
func (h orderHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *orderHeap) Push(x interface{}) {
	o := x.(*Order)
	o.index = len(*h)
	*h = append(*h, o)
}

func (h *orderHeap) Pop() interface{} {
	old := *h
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	o.index = -1
	*h = old[0 : n-1]
	return o
}

// Peek returns the top element without removing it
func (h orderHeap) Peek() *Order {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}
