package search

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var articlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`art[íi]culo\s+(\d+)`),
	regexp.MustCompile(`art\.?\s+(\d+)`),
	regexp.MustCompile(`articulo\s+(\d+)`),
}

// ExtractArticleNumbers returns the distinct article numbers explicitly referenced in
// query ("artículo 131", "art. 2", "art 55"), sorted ascending.
func ExtractArticleNumbers(query string) []int {
	q := strings.ToLower(query)
	set := make(map[int]struct{})
	for _, re := range articlePatterns {
		for _, m := range re.FindAllStringSubmatch(q, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			set[n] = struct{}{}
		}
	}
	nums := make([]int, 0, len(set))
	for n := range set {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
