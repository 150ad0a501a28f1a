// Package vtree implements the self-balancing version tree that backs
// every versioned query variant: each node is keyed on a semantic
// version, and a lookup returns the node with the greatest key not
// exceeding a target version.
package vtree

import (
	"github.com/blang/semver"

	"github.com/lesovsky/pgexporter/internal/model"
)

// NewNode allocates a single detached node carrying variant.
func NewNode(version semver.Version, variant model.QueryVariant) *model.VTreeNode {
	return &model.VTreeNode{Version: version, Variant: variant, Height: 1}
}

func height(n *model.VTreeNode) int {
	if n == nil {
		return 0
	}
	return n.Height
}

func balance(n *model.VTreeNode) int {
	if n == nil {
		return 0
	}
	return height(n.Left) - height(n.Right)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func rightRotate(root *model.VTreeNode) *model.VTreeNode {
	if root == nil || root.Left == nil {
		return root
	}

	a := root
	b := root.Left

	a.Left = b.Right
	b.Right = a

	a.Height = max(height(a.Left), height(a.Right)) + 1
	b.Height = max(height(b.Left), height(b.Right)) + 1

	return b
}

func leftRotate(root *model.VTreeNode) *model.VTreeNode {
	if root == nil || root.Right == nil {
		return root
	}

	a := root
	b := root.Right

	a.Right = b.Left
	b.Left = a

	a.Height = max(height(a.Left), height(a.Right)) + 1
	b.Height = max(height(b.Left), height(b.Right)) + 1

	return b
}

// Insert adds node to root, rebalancing as needed, and returns the new
// root. A node whose version already exists in the tree is discarded
// and the tree is returned unchanged.
func Insert(root *model.VTreeNode, node *model.VTreeNode) *model.VTreeNode {
	if root == nil {
		return node
	}

	cmp := root.Version.Compare(node.Version)

	if cmp == 0 {
		return root
	} else if cmp > 0 {
		root.Left = Insert(root.Left, node)
	} else {
		root.Right = Insert(root.Right, node)
	}

	root.Height = max(height(root.Left), height(root.Right)) + 1

	b := balance(root)
	if b > 1 {
		if balance(root.Left) < 0 {
			root.Left = leftRotate(root.Left)
		}
		return rightRotate(root)
	} else if b < -1 {
		if balance(root.Right) > 0 {
			root.Right = rightRotate(root.Right)
		}
		if balance(root) != 0 {
			return leftRotate(root)
		}
	}

	return root
}

// Lookup returns the node with the greatest version not exceeding
// target, or nil if every node in the tree exceeds target.
func Lookup(root *model.VTreeNode, target semver.Version) *model.VTreeNode {
	var last *model.VTreeNode
	cur := root

	for cur != nil {
		cmp := cur.Version.Compare(target)

		if cmp <= 0 && (last == nil || cur.Version.Compare(last.Version) > 0) {
			last = cur
		}

		if cmp > 0 {
			cur = cur.Left
		} else {
			cur = cur.Right
		}
	}

	if last == nil || last.Version.Compare(target) > 0 {
		return nil
	}

	return last
}
