package compliance

import (
	"sort"
)

// Report maps each naming issue to the paths that have it, in walk order.
type Report map[Category][]string

func (r Report) add(category Category, path string) {
	r[category] = append(r[category], path)
}

// Empty returns whether no issues were found.
func (r Report) Empty() bool {
	for _, paths := range r {
		if len(paths) != 0 {
			return false
		}
	}
	return true
}

// Violations flattens the report, ordered by category and then by path order
// within the category.
func (r Report) Violations() []Violation {
	var violations []Violation
	for _, category := range r.categories() {
		for _, path := range r[category] {
			violations = append(violations, Violation{Path: path, Category: category})
		}
	}
	return violations
}

func (r Report) categories() []Category {
	var categories []Category
	known := map[Category]bool{}
	for _, category := range Categories {
		known[category] = true
		if _, ok := r[category]; ok {
			categories = append(categories, category)
		}
	}

	var extra []Category
	for category := range r {
		if !known[category] {
			extra = append(extra, category)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(categories, extra...)
}

// FolderSize is a folder's total file size in whole megabytes.
type FolderSize struct {
	Name string
	MB   int64
}

// LargestFolders returns the `n` largest folders, largest first. Ties are
// broken by name. A non-positive `n` returns every folder.
func LargestFolders(sizes map[string]int64, n int) []FolderSize {
	var folders []FolderSize
	for name, mb := range sizes {
		folders = append(folders, FolderSize{Name: name, MB: mb})
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].MB != folders[j].MB {
			return folders[i].MB > folders[j].MB
		}
		return folders[i].Name < folders[j].Name
	})

	if n > 0 && len(folders) > n {
		folders = folders[:n]
	}
	return folders
}

// OverThreshold returns the folders strictly larger than `thresholdMB`,
// largest first.
func OverThreshold(sizes map[string]int64, thresholdMB int64) []FolderSize {
	var over []FolderSize
	for _, folder := range LargestFolders(sizes, 0) {
		if folder.MB > thresholdMB {
			over = append(over, folder)
		}
	}
	return over
}
