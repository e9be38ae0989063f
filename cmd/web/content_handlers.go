package main

import (
	"errors"
	"net/http"

	"o-r.kr/buynow-web/internal/content"
	mw "o-r.kr/buynow-web/internal/middleware"
)

// ContentPageHandler serves a markdown-backed static page (notice, faq, terms).
func ContentPageHandler(slug string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := contentLib.Page(slug)
		if err != nil {
			if errors.Is(err, content.ErrNotFound) {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			http.Error(w, "content unavailable", http.StatusInternalServerError)
			return
		}

		sess := mw.GetSession(r)
		vm := basePageData(r, sess)
		vm.Title = page.Title
		vm.Content = &page
		w.Header().Set("Cache-Control", "public, max-age=600")
		renderPage(w, r, "content", vm)
	}
}
