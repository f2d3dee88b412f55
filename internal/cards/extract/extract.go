// Package extract provides an insertion-ordered key/value tree for loosely
// structured card data, plus dot-path projection of selected fields. The feed
// only forwards configured data fields to subscribers; everything else is
// stripped before an operation reaches the bus.
package extract

import "strings"

// ExtractFields projects the listed dot-paths out of data into a new tree.
// Key order follows the order of first insertion; absent paths are skipped
// silently. A nil data tree yields an empty tree.
func ExtractFields(data *Tree, fields []string) *Tree {
	result := NewTree()
	if data == nil {
		return result
	}
	for _, field := range fields {
		extractNested(data, result, strings.Split(field, "."), 0)
	}
	return result
}

func extractNested(src, dst *Tree, path []string, index int) {
	key := path[index]
	value, ok := src.Get(key)
	if !ok {
		return
	}
	if index == len(path)-1 {
		dst.Set(key, value)
		return
	}
	nested, ok := value.(*Tree)
	if !ok {
		return
	}
	sub, ok := dst.Get(key)
	subTree, isTree := sub.(*Tree)
	if !ok || !isTree {
		subTree = NewTree()
		dst.Set(key, subTree)
	}
	extractNested(nested, subTree, path, index+1)
}
