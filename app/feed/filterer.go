package feed

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

var FilterFields = map[string]bool{
	"title":   true,
	"summary": true,
	"link":    true,
}

type Filterer struct{}

// FilteredArticle is an article with the verdict of the source filters.
type FilteredArticle struct {
	Article
	IsFiltered   bool
	FilterReason string
}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks articles rejected by the source filters. Order and length are preserved.
func (f *Filterer) Run(articles []Article, filters []ConfigFilter) []FilteredArticle {
	marked := make([]FilteredArticle, 0, len(articles))
	for _, article := range articles {
		entry := FilteredArticle{Article: article}
		if len(filters) > 0 {
			entry.IsFiltered, entry.FilterReason = f.applyFilters(article, filters)
		}
		marked = append(marked, entry)
	}

	return marked
}

// Visible returns the articles Run left unmarked.
func (f *Filterer) Visible(marked []FilteredArticle) []Article {
	visible := make([]Article, 0, len(marked))
	for _, entry := range marked {
		if !entry.IsFiltered {
			visible = append(visible, entry.Article)
		}
	}
	return visible
}

// applyFilters reports the first filter that rejects the article. Excludes win over
// includes within a filter; every filter must pass.
func (f *Filterer) applyFilters(article Article, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(article, filter.Field)
		matches := func(pattern string) bool { return f.matchesFilter(value, pattern) }

		if i := slices.IndexFunc(filter.Excludes, matches); i >= 0 {
			return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, filter.Excludes[i])
		}
		if len(filter.Includes) > 0 && !slices.ContainsFunc(filter.Includes, matches) {
			return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
		}
	}

	return false, ""
}

// matchesFilter is a case-folded substring match. A Caser is not safe for concurrent
// use, so one is built per call.
func (f *Filterer) matchesFilter(value, pattern string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(value), fold.String(pattern))
}

func (f *Filterer) getFieldValue(article Article, field string) string {
	switch field {
	case "title":
		return article.Title
	case "summary":
		return article.Summary
	case "link":
		return article.Link
	default:
		return ""
	}
}
