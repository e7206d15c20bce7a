package highlight

import "sort"

// tag is the rune interval [start, end) of one tag emitted by an earlier
// rule. Input text is escaped before any rule runs, so every '<' in the
// working string opens one of our tags.
type tag struct {
	start, end int
	closing    bool
}

type tagIndex []tag

func scanTags(runes []rune) tagIndex {
	var tags tagIndex
	for i := 0; i < len(runes); i++ {
		if runes[i] != '<' {
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] != '>' {
			j++
		}
		if j == len(runes) {
			// Cannot happen with escaped input; treat the tail as one tag so
			// nothing matches inside it.
			tags = append(tags, tag{start: i, end: j})
			break
		}
		closing := i+1 < len(runes) && runes[i+1] == '/'
		tags = append(tags, tag{start: i, end: j + 1, closing: closing})
		i = j
	}
	return tags
}

// inside reports whether rune offset p falls strictly within a tag.
func (t tagIndex) inside(p int) bool {
	i := sort.Search(len(t), func(i int) bool { return t[i].end > p })
	return i < len(t) && t[i].start < p
}

// balanced reports whether [start, end) holds only complete tags whose
// opening and closing elements pair up.
func (t tagIndex) balanced(start, end int) bool {
	if t.inside(start) || t.inside(end) {
		return false
	}
	depth := 0
	i := sort.Search(len(t), func(i int) bool { return t[i].start >= start })
	for ; i < len(t) && t[i].start < end; i++ {
		if t[i].end > end {
			return false
		}
		if t[i].closing {
			depth--
			if depth < 0 {
				return false
			}
		} else {
			depth++
		}
	}
	return depth == 0
}
