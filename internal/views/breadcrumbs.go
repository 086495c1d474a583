// Package views holds page chrome shared by the server-rendered templates.
package views

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Crumb is one link in a breadcrumb trail. The last crumb is Current and is
// rendered without a link.
type Crumb struct {
	Label   string
	Href    string
	Current bool
}

// Breadcrumbs turns a request path into a trail starting at Home.
func Breadcrumbs(path string) []Crumb {
	crumbs := []Crumb{{Label: "Home", Href: "/"}}

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	href := ""
	for i, raw := range segments {
		href += "/" + raw
		parent := ""
		if i > 0 {
			parent = segments[i-1]
		}
		crumbs = append(crumbs, Crumb{
			Label: crumbLabel(raw, parent),
			Href:  href,
		})
	}

	crumbs[len(crumbs)-1].Current = true
	return crumbs
}

func crumbLabel(raw, parent string) string {
	seg, err := url.PathUnescape(raw)
	if err != nil {
		seg = raw
	}

	if isNumeric(seg) {
		switch parent {
		case "works":
			return "Work #" + seg
		case "chapters":
			return "Chapter " + seg
		}
		return seg
	}

	seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	// Casers carry state and are not shared across goroutines.
	return cases.Title(language.English).String(strings.Join(strings.Fields(seg), " "))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
