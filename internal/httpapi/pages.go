package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"stockdash/internal/domain"
	"stockdash/internal/gather"
	"stockdash/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageRenderer struct {
	stock       *template.Template
	correlation *template.Template
}

func newPageRenderer() *pageRenderer {
	parse := func(page string) *template.Template {
		return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+page))
	}
	return &pageRenderer{
		stock:       parse("stock.html"),
		correlation: parse("correlation.html"),
	}
}

// pageData is what both page templates render.
type pageData struct {
	Title string
	Path  string
	State view.State
}

func (s *DashboardServer) render(w http.ResponseWriter, t *template.Template, data pageData) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.Error("rendering page", "page", data.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "rendering failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// pageWindow reads ?minutes=, falling back to the default window.
func (s *DashboardServer) pageWindow(r *http.Request) (domain.Window, error) {
	raw := r.URL.Query().Get("minutes")
	if raw == "" {
		return s.defaultWindow, nil
	}
	w, err := domain.ParseWindow(raw)
	if err != nil {
		return 0, err
	}
	if !w.IsDashboardWindow() {
		return 0, view.ErrInvalidWindow
	}
	return w, nil
}

func (s *DashboardServer) viewOptions() view.Options {
	return view.Options{
		DefaultWindow: s.defaultWindow,
		Location:      s.loc,
		Logger:        s.log,
	}
}

// handleStockPage renders the single-stock chart. Fetch errors are shown at
// the top of the page rather than failing the request.
func (s *DashboardServer) handleStockPage(w http.ResponseWriter, r *http.Request) {
	window, err := s.pageWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := view.NewStockView(s.src, s.viewOptions())
	defer v.Close()

	st, err := v.Load(r.Context(), domain.Ticker(r.URL.Query().Get("ticker")), window)
	if errors.Is(err, gather.ErrUnknownTicker) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.render(w, s.pages.stock, pageData{Title: "Stock Price", Path: "/", State: st})
}

// handleCorrelationPage renders the heatmap of every tracked stock.
func (s *DashboardServer) handleCorrelationPage(w http.ResponseWriter, r *http.Request) {
	window, err := s.pageWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := view.NewCorrelationView(s.src, s.viewOptions())
	defer v.Close()

	st, _ := v.Load(r.Context(), window)
	s.render(w, s.pages.correlation, pageData{Title: "Correlation Heatmap", Path: "/correlation", State: st})
}
