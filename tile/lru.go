package tile

// lruNode is a node in a doubly-linked LRU list. The node stores its key so
// the store map entry can be deleted in O(1) on eviction.
type lruNode struct {
	key  Key
	prev *lruNode
	next *lruNode
}

// lruList is a doubly-linked list ordering tiles by recency of use.
// Head is most recently used, tail is least recently used.
// Not thread-safe; the store mutex guards it.
type lruList struct {
	head *lruNode
	tail *lruNode
	len  int
}

func (l *lruList) Len() int { return l.len }

// PushFront adds a new node at the front and returns it.
func (l *lruList) PushFront(key Key) *lruNode {
	node := &lruNode{key: key}
	if l.head == nil {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}
	l.len++
	return node
}

// MoveToFront marks an existing node as most recently used.
func (l *lruList) MoveToFront(node *lruNode) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)

	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// Remove unlinks a node from the list.
func (l *lruList) Remove(node *lruNode) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// Oldest returns the least recently used key without removing it.
func (l *lruList) Oldest() (Key, bool) {
	if l.tail == nil {
		return Key{}, false
	}
	return l.tail.key, true
}

// next older: walk from tail toward head. olderThan returns the node before
// the given one in recency order, used to skip pinned tiles during eviction.
func (l *lruList) tailNode() *lruNode { return l.tail }

func (l *lruList) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
