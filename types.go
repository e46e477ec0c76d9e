package pubfront

import (
	"github.com/a-h/templ"

	"github.com/eringen/pubfront/detail"
	"github.com/eringen/pubfront/listview"
	"github.com/eringen/pubfront/views"
)

// ViewFuncs holds the templ components the handlers render. Callers can
// replace any of them to own the markup.
type ViewFuncs struct {
	Home        func(cfg views.SiteConfig, state listview.State, csrf string) templ.Component
	PostList    func(state listview.State, csrf string) templ.Component
	Post        func(cfg views.SiteConfig, page detail.Page, csrf string) templ.Component
	CreateForm  func(cfg views.SiteConfig, f views.Form) templ.Component
	NotFound    func(cfg views.SiteConfig) templ.Component
	ServerError func(cfg views.SiteConfig) templ.Component
}

// DefaultViews returns the stock components from the views package.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:        views.Home,
		PostList:    views.PostList,
		Post:        views.PostPage,
		CreateForm:  views.CreateForm,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

func (v *ViewFuncs) fillDefaults() {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.PostList == nil {
		v.PostList = d.PostList
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.CreateForm == nil {
		v.CreateForm = d.CreateForm
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
}
