package main

import (
	"flag"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"o-r.kr/buynow-web/internal/api"
	"o-r.kr/buynow-web/internal/content"
	"o-r.kr/buynow-web/internal/format"
	"o-r.kr/buynow-web/internal/logging"
	mw "o-r.kr/buynow-web/internal/middleware"
	"o-r.kr/buynow-web/internal/shopnav"
)

var (
	templatesDir = "templates"
	publicDir    = "public"
	contentDir   = "content"
	// devMode is set in main() based on env: BUYNOW_WEB_DEV (preferred) or DEV (fallback)
	devMode   bool
	tmplCache *template.Template

	apiClient   *api.Client
	contentLib  *content.Library
	loadTracker = shopnav.NewTracker()
	logger      *zap.Logger
)

func main() {
	var (
		addr     string
		tmplPath string
		pubPath  string
		cntPath  string
		apiBase  string
	)
	// Port resolution: prefer BUYNOW_WEB_PORT, then PORT, else 8080
	port := os.Getenv("BUYNOW_WEB_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = "8080"
	}
	base := os.Getenv("BUYNOW_WEB_API_BASE")
	if base == "" {
		base = "https://api.o-r.kr"
	}
	flag.StringVar(&addr, "addr", ":"+port, "HTTP listen address")
	flag.StringVar(&tmplPath, "templates", templatesDir, "templates directory")
	flag.StringVar(&pubPath, "public", publicDir, "public assets directory")
	flag.StringVar(&cntPath, "content", contentDir, "markdown content directory")
	flag.StringVar(&apiBase, "api", base, "backend API base URL")
	flag.Parse()

	templatesDir = tmplPath
	publicDir = pubPath
	contentDir = cntPath

	devMode = os.Getenv("BUYNOW_WEB_DEV") != "" || os.Getenv("DEV") != ""

	var err error
	logger, err = logging.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !devMode {
		tc, err := parseTemplates()
		if err != nil {
			logger.Fatal("parse templates", zap.Error(err))
		}
		tmplCache = tc
	}

	apiClient = api.NewClient(apiBase, nil)
	contentLib = content.NewLibrary(contentDir)

	r := newRouter()

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("web listening", zap.String("addr", addr), zap.Bool("dev", devMode))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("listen", zap.Error(err))
	}
}

func newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// Behind a trusted reverse proxy RealIP resolves the client from
	// X-Forwarded-For; only trusted proxies may set these headers in prod.
	r.Use(chimw.RealIP)
	r.Use(mw.HTMX)
	r.Use(mw.Session)
	r.Use(mw.Auth(apiClient))
	r.Use(mw.CSRF)
	r.Use(mw.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	assets := http.StripPrefix("/assets", mw.AssetsWithCache(filepath.Join(publicDir, "assets")))
	r.Handle("/assets/*", assets)

	r.Get("/", HomeHandler)
	r.Post("/time", TimeSelectHandler)
	r.Post("/likes/{storeID}", LikeToggleHandler)

	r.Get("/login", LoginFormHandler)
	r.Post("/login", LoginHandler)
	r.Post("/logout", LogoutHandler)

	r.Get("/favorites", FavoritesHandler)
	r.Get("/history", HistoryHandler)
	r.Post("/reservations/{reservationID}/cancel", ReservationCancelHandler)
	r.Get("/mypage", MyPageHandler)
	r.Post("/mypage/address", AddressUpdateHandler)
	r.Get("/search-address", SearchAddressHandler)

	// shop detail flow; every sub-path funnels into the navigator driver
	r.Get("/shop/{storeID}", ShopDetailHandler)
	r.Get("/shop/{storeID}/*", ShopDetailHandler)
	r.Post("/shop/{storeID}/reserve", ReserveStartHandler)
	r.Post("/shop/{storeID}/reservation/confirm", ReserveConfirmHandler)
	r.Post("/shop/{storeID}/reservation/cancel", ReserveCancelHandler)

	r.Get("/notice", ContentPageHandler("notice"))
	r.Get("/faq", ContentPageHandler("faq"))
	r.Get("/terms", ContentPageHandler("terms"))

	// unmatched routes land on the store list
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	return r
}

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"now":       time.Now,
		"won":       format.Won,
		"percent":   format.Percent,
		"distance":  format.Distance,
		"walk":      format.Walk,
		"hourLabel": format.HourLabel,
		"date":      format.Date,
		"likeBtn": func(storeID int64, liked bool, csrf string) map[string]any {
			return map[string]any{"StoreID": storeID, "Liked": liked, "Error": "", "CSRFToken": csrf}
		},
		"reserveArgs": func(storeID, spaceID int64, csrf, spaceName string, m api.Menu) map[string]any {
			if spaceID == 0 {
				spaceID = m.SpaceID
			}
			return map[string]any{"StoreID": storeID, "SpaceID": spaceID, "CSRFToken": csrf, "SpaceName": spaceName, "Menu": m}
		},
	}
	// Recursively discover and parse all .tmpl files. ParseGlob doesn't support **.
	var files []string
	if err := filepath.WalkDir(templatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".tmpl") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found under %s", templatesDir)
	}
	return template.New("_root").Funcs(funcMap).ParseFiles(files...)
}

func lookupTemplates(w http.ResponseWriter) *template.Template {
	if devMode {
		tc, err := parseTemplates()
		if err != nil {
			http.Error(w, fmt.Sprintf("template parse error: %v", err), http.StatusInternalServerError)
			return nil
		}
		return tc
	}
	if tmplCache == nil {
		http.Error(w, "template not initialized", http.StatusInternalServerError)
		return nil
	}
	return tmplCache
}

// renderPage executes a full page template. Pages wrap themselves in the
// shared head/foot partials.
func renderPage(w http.ResponseWriter, r *http.Request, page string, data *PageData) {
	t := lookupTemplates(w)
	if t == nil {
		return
	}
	data.Page = page
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, page, data); err != nil {
		http.Error(w, fmt.Sprintf("template exec error: %v", err), http.StatusInternalServerError)
	}
}

// renderTemplate executes a standalone fragment template (htmx responses).
func renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	t := lookupTemplates(w)
	if t == nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, fmt.Sprintf("template exec error: %v", err), http.StatusInternalServerError)
	}
}
